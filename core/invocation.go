package core

import "io"

// InvocationRequest carries one backend invocation. Constructed fresh per
// turn; treat as immutable after construction.
//
// BackendSessionID is the opaque conversation handle used to resume a prior
// backend-side conversation. Resume distinguishes "continue this existing
// backend conversation" from "start a new conversation, adopting this id if
// the backend supports explicit session ids".
type InvocationRequest struct {
	Message          string
	Model            string
	BackendSessionID string
	Resume           bool

	// PassthroughArgs are forwarded verbatim to the backend, appended after
	// all adapter-built arguments.
	PassthroughArgs []string

	// Env holds key/value overrides layered on top of the provider's
	// configured environment snapshot.
	Env map[string]string

	// Stdout and Stderr receive output as it arrives when non-nil. Output is
	// additionally buffered into the InvocationResult for consumers that did
	// not stream.
	Stdout io.Writer
	Stderr io.Writer
}

// InvocationResult is the normalized outcome of one backend invocation.
// Immutable value returned once per invocation. Stdout holds the normalized
// plain-text output (not the raw wire protocol). BackendSessionID is the new
// or continued conversation handle reported by the backend, empty when the
// protocol has no continuity.
type InvocationResult struct {
	ExitCode         int
	Stdout           string
	Stderr           string
	BackendSessionID string
}

// OK reports whether the invocation completed successfully.
func (r InvocationResult) OK() bool { return r.ExitCode == 0 }
