// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer RelayLogger with contextual
// helpers (component, run, agent) and domain specific logging helpers for
// backend invocations and orchestration runs.
package logging
