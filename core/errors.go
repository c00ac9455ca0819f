package core

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is.
var (
	// ErrCancelled marks a run ended by caller cancellation. Not a failure;
	// the run terminates with RunStatusCancelled.
	ErrCancelled = errors.New("run cancelled")

	// ErrSessionBusy is returned when a run would overlap another active run
	// on the same (agentID, sessionKey).
	ErrSessionBusy = errors.New("session has an active run")

	// ErrSessionNotFound is returned for unknown session refs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAgentNotFound is returned for unknown agent ids.
	ErrAgentNotFound = errors.New("agent not found")
)

// ProviderNotFoundError indicates an unknown provider id. Fatal, surfaced
// immediately.
type ProviderNotFoundError struct {
	ProviderID string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %q not found", e.ProviderID)
}

// ProviderAuthenticationError indicates a missing or invalid credential.
// Fatal, never retried, and raised before any call is attempted when the
// credential is absent.
type ProviderAuthenticationError struct {
	ProviderID string
	Reason     string
}

func (e *ProviderAuthenticationError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.ProviderID, e.Reason)
}

// UnsupportedProviderActionError indicates a capability mismatch, caught
// before any process or network I/O.
type UnsupportedProviderActionError struct {
	ProviderID string
	Action     string
}

func (e *UnsupportedProviderActionError) Error() string {
	return fmt.Sprintf("provider %q does not support action %q", e.ProviderID, e.Action)
}

// ProviderRuntimeError indicates the backend was reachable but returned
// unusable output or a non-auth failure. Retried at most once, and only under
// the documented HTTP style-fallback rule.
type ProviderRuntimeError struct {
	ProviderID string
	StatusCode int // HTTP status when applicable, 0 otherwise
	Err        error
}

func (e *ProviderRuntimeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %q runtime error (status %d): %v", e.ProviderID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %q runtime error: %v", e.ProviderID, e.Err)
}

func (e *ProviderRuntimeError) Unwrap() error { return e.Err }

// CommandMissingError indicates a child process executable was not found on
// PATH. Remediation carries actionable installation guidance.
type CommandMissingError struct {
	Command     string
	Remediation string
}

func (e *CommandMissingError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("command %q not found: %s", e.Command, e.Remediation)
	}
	return fmt.Sprintf("command %q not found", e.Command)
}

// MalformedPlannerOutputError indicates a planning step's output contained no
// parsable decision payload. The run ends failed with the partial trace
// preserved; the loop never silently continues.
type MalformedPlannerOutputError struct {
	AgentID string
	Output  string
}

func (e *MalformedPlannerOutputError) Error() string {
	return fmt.Sprintf("agent %q produced no parsable planning decision", e.AgentID)
}

// DelegationDepthExceededError is the termination safety valve for delegation
// chains.
type DelegationDepthExceededError struct {
	MaxDepth int
}

func (e *DelegationDepthExceededError) Error() string {
	return fmt.Sprintf("delegation depth exceeded maximum of %d", e.MaxDepth)
}

// DelegationNotAllowedError indicates an invalid delegation: the target is
// unknown, not discoverable, cannot receive delegations, or the delegating
// agent lacks CanDelegate.
type DelegationNotAllowedError struct {
	AgentID string
	Target  string
	Reason  string
}

func (e *DelegationNotAllowedError) Error() string {
	return fmt.Sprintf("agent %q may not delegate to %q: %s", e.AgentID, e.Target, e.Reason)
}
