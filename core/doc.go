// Package core provides the foundational domain types, interfaces and error
// taxonomy used by AgentRelay. It defines the core abstractions for:
//
//   - Agent descriptors (identity, delegation permissions, routing metadata)
//   - Provider descriptors (backend kind + declared capabilities)
//   - Invocation requests/results (the uniform backend contract)
//   - Planning decisions and orchestration steps (the unit of the run loop)
//   - Sessions (durable, resumable per-agent conversation state)
//   - Pluggable session store contract
//
// The package intentionally keeps implementation concerns (persistence,
// backend adapters, engine orchestration) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
