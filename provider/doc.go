// Package provider implements the backend provider runtime: a registry of
// named adapters, each exposing one uniform invocation contract over either a
// spawned child process or an HTTP completion API.
//
// The runtime owns the cross-cutting invocation lifecycle: capability
// validation before any I/O, per-provider wall-clock timeouts, cancellation
// propagation and error classification. Concrete adapters (see the process,
// httpapi, openai and anthropic sub-packages) contribute only argument/request
// building and output normalization.
package provider
