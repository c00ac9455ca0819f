package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// InMemoryStore is a volatile core.SessionStore implementation storing
// sessions in process local maps. It is safe for concurrent access and best
// suited for tests or ephemeral use.
type InMemoryStore struct {
	mu      sync.Mutex
	agents  map[string]map[string]*memSession
	running map[string]struct{}
}

type memSession struct {
	info    core.SessionInfo
	entries []core.TranscriptEntry
}

// Compile-time interface assertion.
var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents:  make(map[string]map[string]*memSession),
		running: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) sessionsLocked(agentID string) map[string]*memSession {
	agentID = core.NormalizeAgentID(agentID)
	m, ok := s.agents[agentID]
	if !ok {
		m = make(map[string]*memSession)
		s.agents[agentID] = m
	}
	return m
}

func (s *InMemoryStore) ensureLocked(agentID, key string) *memSession {
	if key == "" {
		key = core.DefaultSessionKey
	}
	m := s.sessionsLocked(agentID)
	if sess, ok := m[key]; ok {
		return sess
	}
	id := core.NewID()
	sess := &memSession{info: core.SessionInfo{
		Key:            key,
		ID:             id,
		TranscriptPath: fmt.Sprintf("%s-%s.md", key, id[:8]),
		UpdatedAt:      time.Now().UTC(),
	}}
	m[key] = sess
	return sess
}

func (s *InMemoryStore) resolveLocked(agentID, sessionRef string) (*memSession, error) {
	m := s.sessionsLocked(agentID)
	if sessionRef == "" {
		sessionRef = core.DefaultSessionKey
	}
	if sess, ok := m[sessionRef]; ok {
		return sess, nil
	}
	for _, sess := range m {
		if sess.info.ID == sessionRef {
			return sess, nil
		}
	}
	if sess, ok := m[core.DefaultSessionKey]; ok {
		return sess, nil
	}
	return nil, fmt.Errorf("%w: agent %q ref %q", core.ErrSessionNotFound, agentID, sessionRef)
}

// List implements core.SessionStore.
func (s *InMemoryStore) List(agentID string) ([]core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.sessionsLocked(agentID)
	out := make([]core.SessionInfo, 0, len(m))
	for _, sess := range m {
		out = append(out, sess.info)
	}
	return out, nil
}

// Ensure implements core.SessionStore.
func (s *InMemoryStore) Ensure(agentID, key string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(agentID, key).info, nil
}

// Resolve implements core.SessionStore.
func (s *InMemoryStore) Resolve(agentID, sessionRef string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.SessionInfo{}, err
	}
	return sess.info, nil
}

// History implements core.SessionStore.
func (s *InMemoryStore) History(agentID, sessionRef string) ([]core.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return nil, err
	}
	entries := make([]core.TranscriptEntry, len(sess.entries))
	copy(entries, sess.entries)
	return entries, nil
}

// Append implements core.SessionStore.
func (s *InMemoryStore) Append(agentID, key string, entry core.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensureLocked(agentID, key)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	sess.entries = append(sess.entries, entry)
	if entry.Role == "user" {
		sess.info.InputChars += len(entry.Text)
	} else if !entry.IsCompaction() {
		sess.info.OutputChars += len(entry.Text)
	}
	sess.info.UpdatedAt = time.Now().UTC()
	return nil
}

// AdoptBackendID implements core.SessionStore.
func (s *InMemoryStore) AdoptBackendID(agentID, key, backendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.sessionsLocked(agentID)
	sess, ok := m[key]
	if !ok {
		return fmt.Errorf("%w: agent %q key %q", core.ErrSessionNotFound, agentID, key)
	}
	sess.info.ID = backendID
	sess.info.BackendAttached = true
	sess.info.UpdatedAt = time.Now().UTC()
	return nil
}

// Reset implements core.SessionStore.
func (s *InMemoryStore) Reset(agentID, sessionRef string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.SessionInfo{}, err
	}
	id := core.NewID()
	sess.info.ID = id
	sess.info.TranscriptPath = fmt.Sprintf("%s-%s.md", sess.info.Key, id[:8])
	sess.info.InputChars = 0
	sess.info.OutputChars = 0
	sess.info.CompactionCount = 0
	sess.info.BackendAttached = false
	sess.info.UpdatedAt = time.Now().UTC()
	sess.entries = nil
	return sess.info, nil
}

// Rename implements core.SessionStore.
func (s *InMemoryStore) Rename(agentID, sessionRef, title string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.SessionInfo{}, err
	}
	sess.info.Title = title
	sess.info.UpdatedAt = time.Now().UTC()
	return sess.info, nil
}

// Remove implements core.SessionStore.
func (s *InMemoryStore) Remove(agentID, sessionRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return err
	}
	delete(s.sessionsLocked(agentID), sess.info.Key)
	return nil
}

// Compact implements core.SessionStore.
func (s *InMemoryStore) Compact(agentID, sessionRef string) (core.CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.CompactResult{}, err
	}
	var compacted, chars int
	for _, e := range sess.entries {
		if e.IsCompaction() {
			continue
		}
		compacted++
		chars += len(e.Text)
	}
	if compacted == 0 {
		return core.CompactResult{Applied: false, Compacted: 0}, nil
	}
	sess.entries = []core.TranscriptEntry{{
		Role:      core.RoleCompaction,
		Text:      fmt.Sprintf("Compacted %d messages (%d chars). Prior compactions: %d.", compacted, chars, sess.info.CompactionCount),
		Timestamp: time.Now().UTC(),
	}}
	sess.info.CompactionCount++
	sess.info.UpdatedAt = time.Now().UTC()
	return core.CompactResult{Applied: true, Compacted: compacted}, nil
}

// BeginRun implements core.SessionStore.
func (s *InMemoryStore) BeginRun(agentID, key string) (func(), error) {
	if key == "" {
		key = core.DefaultSessionKey
	}
	lockKey := core.NormalizeAgentID(agentID) + "/" + key

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[lockKey]; busy {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionBusy, lockKey)
	}
	s.running[lockKey] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.running, lockKey)
			s.mu.Unlock()
		})
	}, nil
}
