package core

// DecisionAction discriminates the planning decision union.
type DecisionAction string

const (
	// ActionDelegate hands the run to another agent with a new sub-task.
	ActionDelegate DecisionAction = "delegate_to_agent"
	// ActionFinish terminates the run with a final message.
	ActionFinish DecisionAction = "finish"
)

// PlanningDecision is the single structured decision an agent emits per
// planning turn. It is parsed from raw, untrusted model output; the engine
// fails closed when no well-formed decision payload is present.
//
// For ActionDelegate, TargetAgentID names the agent to receive Message as its
// next input and ExpectedOutput optionally describes what the delegator wants
// back. For ActionFinish, Message is the run's final result.
type PlanningDecision struct {
	Action         DecisionAction `json:"action"`
	TargetAgentID  string         `json:"target_agent_id,omitempty"`
	Message        string         `json:"message"`
	ExpectedOutput string         `json:"expected_output,omitempty"`
}

// IsDelegate reports whether the decision delegates to another agent.
func (d PlanningDecision) IsDelegate() bool { return d.Action == ActionDelegate }

// IsFinish reports whether the decision terminates the run.
func (d PlanningDecision) IsFinish() bool { return d.Action == ActionFinish }

// OrchestrationStep records one completed loop iteration. Immutable once
// appended; the ordered sequence forms the session graph used for the
// execution trace.
type OrchestrationStep struct {
	Seq      int              `json:"seq"`
	AgentID  string           `json:"agentId"`
	Decision PlanningDecision `json:"plannerDecision"`
	Result   InvocationResult `json:"-"`
}
