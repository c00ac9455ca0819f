package core

import "time"

// DefaultSessionKey is the logical session ref used when a caller does not
// name one.
const DefaultSessionKey = "main"

// SessionInfo is one entry of an agent's session index. Key is the logical
// session key (agent-scoped, defaults to "main"); ID is the backend-continuity
// conversation handle, allocated on creation and replaced when a backend
// reports its own id. One session is owned by exactly one (agentID, key) pair
// and the session store is its sole mutator.
type SessionInfo struct {
	Key             string    `json:"-"`
	ID              string    `json:"sessionId"`
	Title           string    `json:"title,omitempty"`
	TranscriptPath  string    `json:"transcriptPath"`
	InputChars      int       `json:"inputChars"`
	OutputChars     int       `json:"outputChars"`
	CompactionCount int       `json:"compactionCount"`
	// BackendAttached records that the backend confirmed conversation
	// continuity by reporting a handle on an earlier turn. Stateless
	// backends never set it, so the session is re-primed on every turn.
	BackendAttached bool      `json:"backendAttached,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RoleCompaction marks the synthetic transcript entry that replaces a
// compacted message run.
const RoleCompaction = "compaction"

// TranscriptEntry is one append-only transcript record. Role is "user",
// "assistant", an agent id, or RoleCompaction.
type TranscriptEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsCompaction reports whether the entry is a synthetic compaction marker.
func (e TranscriptEntry) IsCompaction() bool { return e.Role == RoleCompaction }

// CompactResult reports the outcome of a compaction. A second compaction with
// no intervening appends yields Applied=false and Compacted=0.
type CompactResult struct {
	Applied   bool `json:"applied"`
	Compacted int  `json:"compacted"`
}

// SessionStore is the durable session registry per agent.
//
// Append is the only mutation permitted during a run; Reset, Rename, Remove
// and Compact are explicit administrative operations invoked outside the hot
// run path. Lookup by sessionRef accepts either the logical key or the
// backend-assigned id; resolution order is exact key match, else exact id
// match, else the "main" default.
//
// Within one (agentID, key) at most one active run may append at a time:
// BeginRun returns ErrSessionBusy for an overlapping run and a release
// function otherwise.
type SessionStore interface {
	// List returns all sessions of an agent, most recently updated first.
	List(agentID string) ([]SessionInfo, error)

	// Ensure returns the session for (agentID, key), creating it lazily with
	// a freshly allocated id on first use.
	Ensure(agentID, key string) (SessionInfo, error)

	// Resolve maps a session ref (key or backend id) to a session.
	Resolve(agentID, sessionRef string) (SessionInfo, error)

	// History returns the ordered transcript of a session.
	History(agentID, sessionRef string) ([]TranscriptEntry, error)

	// Append adds one transcript entry and updates the char counters.
	Append(agentID, key string, entry TranscriptEntry) error

	// AdoptBackendID records a backend-reported conversation handle as the
	// session id and marks the session backend-attached for future
	// resumption.
	AdoptBackendID(agentID, key, backendID string) error

	// Reset allocates a new session id and detaches the transcript, keeping
	// the key.
	Reset(agentID, sessionRef string) (SessionInfo, error)

	// Rename changes the session title only.
	Rename(agentID, sessionRef, title string) (SessionInfo, error)

	// Remove deletes the transcript and the index entry.
	Remove(agentID, sessionRef string) error

	// Compact replaces the transcript's message run with one synthetic
	// compaction entry. Not reversible; idempotent when re-applied to an
	// already-compacted transcript.
	Compact(agentID, sessionRef string) (CompactResult, error)

	// BeginRun acquires the single-writer run lock for (agentID, key).
	BeginRun(agentID, key string) (release func(), err error)
}
