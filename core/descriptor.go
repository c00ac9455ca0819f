package core

// DefaultPriority is the routing tie-break priority assigned to agents whose
// manifest does not specify one. Higher values win.
const DefaultPriority = 50

// Delegation encodes an agent's delegation permissions. CanReceive controls
// whether other agents may delegate work to this agent; CanDelegate controls
// whether this agent may hand sub-tasks to others. Root entry agents always
// delegate regardless of CanDelegate (the engine grants this implicitly);
// sub-agents typically keep CanDelegate false to prevent runaway fan-out.
type Delegation struct {
	CanReceive  bool `json:"canReceive"`
	CanDelegate bool `json:"canDelegate"`
}

// AgentDescriptor is the structured identity of a registered agent, parsed
// from its manifest. The ID is a normalized lowercase slug unique within a
// registry. A descriptor is never deleted while referenced by an active run.
type AgentDescriptor struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"displayName"`
	Description  string     `json:"description,omitempty"`
	Provider     string     `json:"provider"`
	Discoverable bool       `json:"discoverable"`
	Delegation   Delegation `json:"delegation"`
	Tags         []string   `json:"tags,omitempty"`
	Priority     int        `json:"priority"`
}

// HasTag reports whether the descriptor carries the given tag.
func (d AgentDescriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ProviderKind distinguishes the two structural backend families.
type ProviderKind string

const (
	// ProviderKindProcess backends are spawned as child processes.
	ProviderKindProcess ProviderKind = "process"
	// ProviderKindHTTP backends are invoked over an HTTP completion API.
	ProviderKindHTTP ProviderKind = "http"
)

// Capabilities declares which operations are legal against a provider. The
// runtime validates every request against these flags before any process or
// network I/O happens.
type Capabilities struct {
	Agent       bool `json:"agent"`
	Model       bool `json:"model"`
	Auth        bool `json:"auth"`
	Passthrough bool `json:"passthrough"`
	Reportees   bool `json:"reportees"`
	AgentCreate bool `json:"agentCreate"`
	AgentDelete bool `json:"agentDelete"`
}

// ProviderDescriptor identifies a registered backend provider. Immutable
// after registration.
type ProviderDescriptor struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName"`
	Kind         ProviderKind `json:"kind"`
	Capabilities Capabilities `json:"capabilities"`
}
