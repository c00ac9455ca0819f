// Package process implements providers backed by spawned command-line AI
// tools (claude, codex, gemini). A concrete adapter contributes only two
// things: building the argument vector from an invocation request, and
// post-processing raw stdout into normalized plain text plus an extracted
// backend session id when the tool emits structured JSON/NDJSON event
// streams. The shared Provider owns the child process lifecycle: environment
// capture, output streaming + buffering, cancellation (the child is killed)
// and error classification.
package process
