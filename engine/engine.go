package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/trace"
)

// DefaultMaxDelegationDepth bounds delegation chains so every run terminates.
const DefaultMaxDelegationDepth = 8

// Directory is the agent lookup surface the engine plans against.
// *agent.Registry satisfies it.
type Directory interface {
	Get(ref string) (core.AgentDescriptor, bool)
	GetManifest(ref string) (agent.Manifest, bool)
	Discoverable() []core.AgentDescriptor
}

// Invoker executes one capability-validated backend invocation.
// *provider.Runtime satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, providerID string, req core.InvocationRequest) (core.InvocationResult, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxDelegationDepth is the maximum number of delegate transitions per
	// run.
	MaxDelegationDepth int
	// DefaultAgentID is the entry agent used when Run is called without one.
	DefaultAgentID string
	// Traces persists run artifacts. Nil disables persistence.
	Traces *trace.Writer
	// Logger receives run diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine drives orchestration runs.
type Engine struct {
	dir     Directory
	invoker Invoker
	store   core.SessionStore

	maxDepth       int
	defaultAgentID string
	traces         *trace.Writer
	logger         logging.Logger
}

// New constructs an Engine over an agent directory, a provider invoker and a
// session store.
func New(dir Directory, invoker Invoker, store core.SessionStore, optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxDelegationDepth: DefaultMaxDelegationDepth,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		dir:            dir,
		invoker:        invoker,
		store:          store,
		maxDepth:       opts.MaxDelegationDepth,
		defaultAgentID: opts.DefaultAgentID,
		traces:         opts.Traces,
		logger:         opts.Logger,
	}
}

// RunOptions holds per-run overrides passed to Run().
type RunOptions struct {
	// Message is the task handed to the entry agent. Required.
	Message string
	// SessionRef selects the logical session (key or backend id). Defaults
	// to "main".
	SessionRef string
	// Model overrides the backend model for every invocation in the run.
	Model string
	// PassthroughArgs are forwarded verbatim to the entry agent's backend.
	PassthroughArgs []string
	// Env holds key/value overrides layered onto every invocation.
	Env map[string]string
	// Stdout and Stderr receive backend output as it arrives.
	Stdout io.Writer
	Stderr io.Writer
}

// RunResult is the terminal outcome of one orchestration run.
type RunResult struct {
	RunID     string
	Status    core.RunStatus
	Output    string
	Steps     []core.OrchestrationStep
	TracePath string
}

// Run executes one orchestration run starting at agentRef (or the configured
// default when empty). The returned error is non-nil for Failed and Cancelled
// runs; the result always carries the terminal status and the partial step
// sequence.
func (e *Engine) Run(ctx context.Context, agentRef string, optFns ...func(o *RunOptions)) (RunResult, error) {
	opts := RunOptions{SessionRef: core.DefaultSessionKey}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionRef == "" {
		opts.SessionRef = core.DefaultSessionKey
	}
	if agentRef == "" {
		agentRef = e.defaultAgentID
	}

	entry, ok := e.dir.Get(agentRef)
	if !ok {
		return RunResult{Status: core.RunStatusFailed}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentRef)
	}
	if opts.Message == "" {
		return RunResult{Status: core.RunStatusFailed}, fmt.Errorf("run needs a non-empty message")
	}

	runID := core.NewID()
	start := time.Now()
	e.logger.Info("run started run_id=%s agent=%s session=%s", runID, entry.ID, opts.SessionRef)

	releases := make(map[string]func())
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	var steps []core.OrchestrationStep
	current := entry
	message := opts.Message
	delegations := 0

	for {
		sess, err := e.resolveSession(current.ID, opts.SessionRef)
		if err != nil {
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}
		if _, held := releases[current.ID]; !held {
			release, err := e.store.BeginRun(current.ID, sess.Key)
			if err != nil {
				return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
			}
			releases[current.ID] = release
		}

		if err := e.store.Append(current.ID, sess.Key, core.TranscriptEntry{
			Role:      "user",
			Text:      message,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}

		mayDelegate := current.Delegation.CanDelegate || current.ID == entry.ID
		// A turn is resumed only when the backend confirmed continuity on an
		// earlier turn. Stateless backends never attach, so their sessions
		// get the full preamble every time.
		resumed := sess.OutputChars > 0 && sess.BackendAttached

		manifest, _ := e.dir.GetManifest(current.ID)
		req := core.InvocationRequest{
			Message:          buildPrompt(manifest, mayDelegate, delegationTargets(e.dir, current.ID), message, resumed),
			Model:            opts.Model,
			BackendSessionID: sess.ID,
			Resume:           resumed,
			Env:              opts.Env,
			Stdout:           opts.Stdout,
			Stderr:           opts.Stderr,
		}
		if current.ID == entry.ID {
			req.PassthroughArgs = opts.PassthroughArgs
		}

		res, err := e.invoker.Invoke(ctx, current.Provider, req)
		if err != nil {
			// A cancelled invocation terminates the run Cancelled with no
			// step appended for it.
			if errors.Is(err, core.ErrCancelled) || errors.Is(ctx.Err(), context.Canceled) {
				return e.finalize(runID, entry.ID, core.RunStatusCancelled, "", steps, start, err), err
			}
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}

		if res.BackendSessionID != "" {
			if err := e.store.AdoptBackendID(current.ID, sess.Key, res.BackendSessionID); err != nil {
				e.logger.Warn("adopt backend session id failed agent=%s err=%v", current.ID, err)
			}
		}
		if err := e.store.Append(current.ID, sess.Key, core.TranscriptEntry{
			Role:      "assistant",
			Text:      res.Stdout,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}

		decision, ok := ParseDecision(res.Stdout)
		if !ok {
			err := &core.MalformedPlannerOutputError{AgentID: current.ID, Output: res.Stdout}
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}

		steps = append(steps, core.OrchestrationStep{
			Seq:      len(steps) + 1,
			AgentID:  current.ID,
			Decision: decision,
			Result:   res,
		})

		if decision.IsFinish() {
			e.logger.Info("run finished run_id=%s steps=%d duration=%s", runID, len(steps), time.Since(start))
			return e.finalize(runID, entry.ID, core.RunStatusDone, decision.Message, steps, start, nil), nil
		}

		target, err := e.validateDelegation(current, decision, mayDelegate)
		if err != nil {
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}
		delegations++
		if delegations > e.maxDepth {
			err := &core.DelegationDepthExceededError{MaxDepth: e.maxDepth}
			return e.finalize(runID, entry.ID, core.RunStatusFailed, "", steps, start, err), err
		}

		e.logger.Debug("delegating run_id=%s from=%s to=%s depth=%d", runID, current.ID, target.ID, delegations)
		current = target
		message = decision.Message
	}
}

// validateDelegation enforces the delegation rules: the delegating agent must
// hold CanDelegate (the entry agent always does) and the target must exist,
// be discoverable and accept delegations.
func (e *Engine) validateDelegation(current core.AgentDescriptor, decision core.PlanningDecision, mayDelegate bool) (core.AgentDescriptor, error) {
	if !mayDelegate {
		return core.AgentDescriptor{}, &core.DelegationNotAllowedError{
			AgentID: current.ID,
			Target:  decision.TargetAgentID,
			Reason:  "agent may not delegate",
		}
	}
	target, ok := e.dir.Get(decision.TargetAgentID)
	if !ok {
		return core.AgentDescriptor{}, &core.DelegationNotAllowedError{
			AgentID: current.ID,
			Target:  decision.TargetAgentID,
			Reason:  "unknown agent",
		}
	}
	if !target.Discoverable {
		return core.AgentDescriptor{}, &core.DelegationNotAllowedError{
			AgentID: current.ID,
			Target:  target.ID,
			Reason:  "agent is not discoverable",
		}
	}
	if !target.Delegation.CanReceive {
		return core.AgentDescriptor{}, &core.DelegationNotAllowedError{
			AgentID: current.ID,
			Target:  target.ID,
			Reason:  "agent does not accept delegations",
		}
	}
	return target, nil
}

func (e *Engine) resolveSession(agentID, ref string) (core.SessionInfo, error) {
	s, err := e.store.Resolve(agentID, ref)
	if errors.Is(err, core.ErrSessionNotFound) {
		return e.store.Ensure(agentID, ref)
	}
	return s, err
}

// finalize persists the trace artifact, records the run metrics and
// assembles the terminal result. Runs on every terminal path so failed and
// cancelled runs keep their partial trace.
func (e *Engine) finalize(runID, entryID string, status core.RunStatus, output string, steps []core.OrchestrationStep, start time.Time, runErr error) RunResult {
	records, graph := trace.FromSteps(steps)
	t := trace.Trace{
		RunID:        runID,
		Mode:         trace.ModeOrchestrate,
		Status:       status,
		EntryAgentID: entryID,
		Steps:        records,
		SessionGraph: graph,
		CreatedAt:    time.Now().UTC(),
	}

	var path string
	if e.traces != nil {
		p, err := e.traces.Write(t)
		if err != nil {
			e.logger.Error("trace persistence failed run_id=%s err=%v", runID, err)
		} else {
			path = p
		}
	}
	if rl, ok := e.logger.(logging.RunLogger); ok {
		rl.LogRun(string(status), len(steps), time.Since(start), runErr)
	} else if status != core.RunStatusDone {
		e.logger.Warn("run ended run_id=%s status=%s steps=%d duration=%s", runID, status, len(steps), time.Since(start))
	}
	return RunResult{RunID: runID, Status: status, Output: output, Steps: steps, TracePath: path}
}
