// Package session houses concrete implementations of core.SessionStore. The
// interface itself (and the session types) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (engine, façade) from depending on concrete storage.
//
// FileStore is the durable default: a per-agent JSON index plus one
// append-only markdown transcript per session. InMemoryStore mirrors the
// contract for tests and ephemeral use.
package session
