// Package agentrelay provides a high-level façade over the orchestration
// engine, the backend provider runtime and the session store, enabling
// multi-agent runs over heterogeneous AI backends (CLI tools and HTTP
// completion APIs). Most applications interact with this package by:
//  1. Creating an AgentRelay via New() pointing at an agents directory
//  2. Running an agent with RunAgent (the planning loop delegates between
//     agents and returns the final result plus a trace path)
//  3. Administering per-agent sessions (list, history, reset, rename,
//     remove, compact)
//
// The façade never reads process argv and never prints help text; callers
// own the outer command-line or editor surface. All defaults are safe for
// local development; durable stores and structured loggers are supplied via
// options.
package agentrelay

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/provider"
	"github.com/hupe1980/agentrelay/provider/anthropic"
	"github.com/hupe1980/agentrelay/provider/httpapi"
	"github.com/hupe1980/agentrelay/provider/openai"
	"github.com/hupe1980/agentrelay/provider/process"
	"github.com/hupe1980/agentrelay/session"
	"github.com/hupe1980/agentrelay/trace"
)

// Options configures the AgentRelay instance.
type Options struct {
	// AgentsDir holds the agent manifests (<id>/AGENT.md or <id>.md). A
	// missing directory yields an empty registry.
	AgentsDir string

	// SessionStore persists transcripts and session indexes. Defaults to an
	// in-memory store; supply session.NewFileStore for durability.
	SessionStore core.SessionStore

	// TracesDir receives one JSON artifact per run. Empty disables trace
	// persistence.
	TracesDir string

	// Env is the explicit environment snapshot handed to provider factories
	// (command overrides, base URLs, API keys). The runtime never reads
	// ambient process state itself.
	Env map[string]string

	// DefaultAgentID is the entry agent used when RunAgent is called with an
	// empty agent ref.
	DefaultAgentID string

	// MaxDelegationDepth bounds delegation chains per run.
	MaxDelegationDepth int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentRelay is the high-level façade aggregating the agent registry, the
// provider runtime, the session store and the orchestration engine.
type AgentRelay struct {
	opts      Options
	agents    *agent.Registry
	providers *provider.Registry
	runtime   *provider.Runtime
	sessions  core.SessionStore
	engine    *engine.Engine
}

// New creates an AgentRelay with optional overrides and the built-in
// providers (claude, codex, gemini, openai, anthropic, openai-compat)
// registered.
func New(optFns ...func(o *Options)) (*AgentRelay, error) {
	opts := Options{
		SessionStore:       session.NewInMemoryStore(),
		MaxDelegationDepth: engine.DefaultMaxDelegationDepth,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	agents, err := agent.NewRegistry(opts.AgentsDir, func(o *agent.RegistryOptions) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("load agent registry: %w", err)
	}

	providers := provider.NewRegistry(func(c *provider.Config) {
		c.Env = opts.Env
		c.Logger = opts.Logger
	})
	providers.Register("claude", process.NewClaudeFactory())
	providers.Register("codex", process.NewCodexFactory())
	providers.Register("gemini", process.NewGeminiFactory())
	providers.Register("openai", openai.NewFactory())
	providers.Register("anthropic", anthropic.NewFactory())
	providers.Register("openai-compat", httpapi.NewFactory())

	runtime := provider.NewRuntime(providers, func(o *provider.RuntimeOptions) {
		o.Logger = opts.Logger
	})

	var traces *trace.Writer
	if opts.TracesDir != "" {
		traces = trace.NewWriter(opts.TracesDir)
	}

	eng := engine.New(agents, runtime, opts.SessionStore, func(o *engine.Options) {
		o.MaxDelegationDepth = opts.MaxDelegationDepth
		o.DefaultAgentID = opts.DefaultAgentID
		o.Traces = traces
		o.Logger = opts.Logger
	})

	return &AgentRelay{
		opts:      opts,
		agents:    agents,
		providers: providers,
		runtime:   runtime,
		sessions:  opts.SessionStore,
		engine:    eng,
	}, nil
}

// RegisterProvider adds or replaces a provider factory, e.g. for custom
// backends.
func (r *AgentRelay) RegisterProvider(id string, f provider.Factory) {
	r.providers.Register(id, f)
}

// RunAgent executes one orchestration run starting at agentRef (or the
// configured default when empty). Output streams to the sinks in the run
// options; the result carries the final message, the step sequence and the
// trace artifact path.
func (r *AgentRelay) RunAgent(ctx context.Context, agentRef string, optFns ...func(o *engine.RunOptions)) (engine.RunResult, error) {
	return r.engine.Run(ctx, agentRef, optFns...)
}

// Agents returns all registered agent descriptors ordered by priority.
func (r *AgentRelay) Agents() []core.AgentDescriptor { return r.agents.List() }

// GetAgent returns the descriptor for an agent ref.
func (r *AgentRelay) GetAgent(ref string) (core.AgentDescriptor, bool) { return r.agents.Get(ref) }

// ProviderIDs returns the registered provider ids, sorted.
func (r *AgentRelay) ProviderIDs() []string { return r.providers.IDs() }

// ProviderDescriptor returns the descriptor of a registered provider.
func (r *AgentRelay) ProviderDescriptor(providerID string) (core.ProviderDescriptor, error) {
	return r.runtime.Descriptor(providerID)
}

// AuthenticateProvider runs a credential check against a provider that
// declares the auth capability. Providers without it fail fast with no I/O.
func (r *AgentRelay) AuthenticateProvider(ctx context.Context, providerID string) (core.InvocationResult, error) {
	return r.runtime.InvokeAuth(ctx, providerID, core.InvocationRequest{})
}

// CreateAgent writes a new agent manifest. The agent's provider must declare
// the agentCreate capability.
func (r *AgentRelay) CreateAgent(m agent.Manifest) error {
	if err := r.checkProviderCapability(m.Descriptor.Provider, "agentCreate"); err != nil {
		return err
	}
	return r.agents.Save(m)
}

// DeleteAgent removes an agent's manifest. The agent's provider must declare
// the agentDelete capability.
func (r *AgentRelay) DeleteAgent(ref string) error {
	d, ok := r.agents.Get(ref)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, ref)
	}
	if err := r.checkProviderCapability(d.Provider, "agentDelete"); err != nil {
		return err
	}
	return r.agents.Delete(ref)
}

func (r *AgentRelay) checkProviderCapability(providerID, action string) error {
	d, err := r.runtime.Descriptor(providerID)
	if err != nil {
		return err
	}
	var allowed bool
	switch action {
	case "agentCreate":
		allowed = d.Capabilities.AgentCreate
	case "agentDelete":
		allowed = d.Capabilities.AgentDelete
	}
	if !allowed {
		return &core.UnsupportedProviderActionError{ProviderID: providerID, Action: action}
	}
	return nil
}

// ListSessions returns all sessions of an agent, most recently updated first.
func (r *AgentRelay) ListSessions(agentID string) ([]core.SessionInfo, error) {
	return r.sessions.List(agentID)
}

// GetHistory returns the ordered transcript of a session ref.
func (r *AgentRelay) GetHistory(agentID, sessionRef string) ([]core.TranscriptEntry, error) {
	return r.sessions.History(agentID, sessionRef)
}

// ResetSession allocates a new session id and detaches the transcript,
// keeping the logical key.
func (r *AgentRelay) ResetSession(agentID, sessionRef string) (core.SessionInfo, error) {
	return r.sessions.Reset(agentID, sessionRef)
}

// RenameSession changes a session's title only.
func (r *AgentRelay) RenameSession(agentID, sessionRef, title string) (core.SessionInfo, error) {
	return r.sessions.Rename(agentID, sessionRef, title)
}

// RemoveSession deletes a session's transcript and index entry.
func (r *AgentRelay) RemoveSession(agentID, sessionRef string) error {
	return r.sessions.Remove(agentID, sessionRef)
}

// CompactSession replaces a transcript's message run with one synthetic
// compaction entry. Idempotent on an already-compacted transcript.
func (r *AgentRelay) CompactSession(agentID, sessionRef string) (core.CompactResult, error) {
	return r.sessions.Compact(agentID, sessionRef)
}
