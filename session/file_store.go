package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

const indexFileName = "sessions.json"

// FileStoreOptions holds overrides passed to NewFileStore().
type FileStoreOptions struct {
	// Logger receives store diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// FileStore is the durable core.SessionStore: one directory per agent
// containing a sessions.json index (sessionKey → metadata) and one
// append-only markdown transcript per session. Index writes go through a
// temp file + rename so a crash never leaves a torn index.
//
// All methods are safe for concurrent use. The single-writer guarantee per
// (agentID, key) is enforced by BeginRun, not by the individual mutations.
type FileStore struct {
	dir    string
	logger logging.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// Compile-time interface assertion.
var _ core.SessionStore = (*FileStore)(nil)

// NewFileStore constructs a FileStore rooted at dir.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) *FileStore {
	opts := FileStoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FileStore{dir: dir, logger: opts.Logger, running: make(map[string]struct{})}
}

func (s *FileStore) agentDir(agentID string) string {
	return filepath.Join(s.dir, core.NormalizeAgentID(agentID))
}

func (s *FileStore) loadIndex(agentID string) (map[string]core.SessionInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.agentDir(agentID), indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]core.SessionInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}
	index := map[string]core.SessionInfo{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse session index: %w", err)
	}
	for key, info := range index {
		info.Key = key
		index[key] = info
	}
	return index, nil
}

func (s *FileStore) saveIndex(agentID string, index map[string]core.SessionInfo) error {
	dir := s.agentDir(agentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent session dir: %w", err)
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}
	path := filepath.Join(dir, indexFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize session index: %w", err)
	}
	return nil
}

// List implements core.SessionStore.
func (s *FileStore) List(agentID string) ([]core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(agentID)
	if err != nil {
		return nil, err
	}
	out := make([]core.SessionInfo, 0, len(index))
	for _, info := range index {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Ensure implements core.SessionStore.
func (s *FileStore) Ensure(agentID, key string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(agentID, key)
}

func (s *FileStore) ensureLocked(agentID, key string) (core.SessionInfo, error) {
	if key == "" {
		key = core.DefaultSessionKey
	}
	index, err := s.loadIndex(agentID)
	if err != nil {
		return core.SessionInfo{}, err
	}
	if info, ok := index[key]; ok {
		return info, nil
	}

	id := core.NewID()
	info := core.SessionInfo{
		Key:            key,
		ID:             id,
		TranscriptPath: fmt.Sprintf("%s-%s.md", key, id[:8]),
		UpdatedAt:      time.Now().UTC(),
	}
	index[key] = info
	if err := s.saveIndex(agentID, index); err != nil {
		return core.SessionInfo{}, err
	}
	s.logger.Debug("session created agent=%s key=%s id=%s", agentID, key, id)
	return info, nil
}

// Resolve implements core.SessionStore. Resolution order: exact key match,
// else exact id match, else the "main" default.
func (s *FileStore) Resolve(agentID, sessionRef string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(agentID, sessionRef)
}

func (s *FileStore) resolveLocked(agentID, sessionRef string) (core.SessionInfo, error) {
	index, err := s.loadIndex(agentID)
	if err != nil {
		return core.SessionInfo{}, err
	}
	if sessionRef == "" {
		sessionRef = core.DefaultSessionKey
	}
	if info, ok := index[sessionRef]; ok {
		return info, nil
	}
	for _, info := range index {
		if info.ID == sessionRef {
			return info, nil
		}
	}
	if info, ok := index[core.DefaultSessionKey]; ok {
		return info, nil
	}
	return core.SessionInfo{}, fmt.Errorf("%w: agent %q ref %q", core.ErrSessionNotFound, agentID, sessionRef)
}

// History implements core.SessionStore.
func (s *FileStore) History(agentID, sessionRef string) ([]core.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.agentDir(agentID), info.TranscriptPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return parseTranscript(string(raw)), nil
}

// Append implements core.SessionStore.
func (s *FileStore) Append(agentID, key string, entry core.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.ensureLocked(agentID, key)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	path := filepath.Join(s.agentDir(agentID), info.TranscriptPath)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	_, werr := f.WriteString(formatEntry(entry))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append transcript: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close transcript: %w", cerr)
	}

	index, err := s.loadIndex(agentID)
	if err != nil {
		return err
	}
	if entry.Role == "user" {
		info.InputChars += len(entry.Text)
	} else if !entry.IsCompaction() {
		info.OutputChars += len(entry.Text)
	}
	info.UpdatedAt = time.Now().UTC()
	index[info.Key] = info
	return s.saveIndex(agentID, index)
}

// AdoptBackendID implements core.SessionStore.
func (s *FileStore) AdoptBackendID(agentID, key, backendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(agentID)
	if err != nil {
		return err
	}
	info, ok := index[key]
	if !ok {
		return fmt.Errorf("%w: agent %q key %q", core.ErrSessionNotFound, agentID, key)
	}
	if info.ID == backendID && info.BackendAttached {
		return nil
	}
	info.ID = backendID
	info.BackendAttached = true
	info.UpdatedAt = time.Now().UTC()
	index[key] = info
	return s.saveIndex(agentID, index)
}

// Reset implements core.SessionStore. The old transcript file stays on disk
// but is no longer referenced by the index.
func (s *FileStore) Reset(agentID, sessionRef string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.SessionInfo{}, err
	}
	index, err := s.loadIndex(agentID)
	if err != nil {
		return core.SessionInfo{}, err
	}

	id := core.NewID()
	fresh := core.SessionInfo{
		Key:            info.Key,
		ID:             id,
		Title:          info.Title,
		TranscriptPath: fmt.Sprintf("%s-%s.md", info.Key, id[:8]),
		UpdatedAt:      time.Now().UTC(),
	}
	index[info.Key] = fresh
	if err := s.saveIndex(agentID, index); err != nil {
		return core.SessionInfo{}, err
	}
	return fresh, nil
}

// Rename implements core.SessionStore.
func (s *FileStore) Rename(agentID, sessionRef, title string) (core.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.SessionInfo{}, err
	}
	index, err := s.loadIndex(agentID)
	if err != nil {
		return core.SessionInfo{}, err
	}
	info.Title = title
	info.UpdatedAt = time.Now().UTC()
	index[info.Key] = info
	if err := s.saveIndex(agentID, index); err != nil {
		return core.SessionInfo{}, err
	}
	return info, nil
}

// Remove implements core.SessionStore.
func (s *FileStore) Remove(agentID, sessionRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return err
	}
	index, err := s.loadIndex(agentID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.agentDir(agentID), info.TranscriptPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove transcript: %w", err)
	}
	delete(index, info.Key)
	return s.saveIndex(agentID, index)
}

// Compact implements core.SessionStore. The whole transcript is replaced by
// one synthetic compaction entry summarizing the compacted run. Re-applying
// with no intervening appends is a no-op reporting zero compacted messages.
func (s *FileStore) Compact(agentID, sessionRef string) (core.CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.resolveLocked(agentID, sessionRef)
	if err != nil {
		return core.CompactResult{}, err
	}

	path := filepath.Join(s.agentDir(agentID), info.TranscriptPath)
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return core.CompactResult{}, fmt.Errorf("read transcript: %w", err)
	}

	entries := parseTranscript(string(raw))
	var compacted, chars int
	for _, e := range entries {
		if e.IsCompaction() {
			continue
		}
		compacted++
		chars += len(e.Text)
	}
	if compacted == 0 {
		return core.CompactResult{Applied: false, Compacted: 0}, nil
	}

	summary := core.TranscriptEntry{
		Role:      core.RoleCompaction,
		Text:      fmt.Sprintf("Compacted %d messages (%d chars). Prior compactions: %d.", compacted, chars, info.CompactionCount),
		Timestamp: time.Now().UTC(),
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(formatEntry(summary)), 0o644); err != nil {
		return core.CompactResult{}, fmt.Errorf("write compacted transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return core.CompactResult{}, fmt.Errorf("finalize compacted transcript: %w", err)
	}

	index, err := s.loadIndex(agentID)
	if err != nil {
		return core.CompactResult{}, err
	}
	info.CompactionCount++
	info.UpdatedAt = time.Now().UTC()
	index[info.Key] = info
	if err := s.saveIndex(agentID, index); err != nil {
		return core.CompactResult{}, err
	}
	s.logger.Info("session compacted agent=%s key=%s messages=%d", agentID, info.Key, compacted)
	return core.CompactResult{Applied: true, Compacted: compacted}, nil
}

// BeginRun implements core.SessionStore. The returned release function is
// idempotent.
func (s *FileStore) BeginRun(agentID, key string) (func(), error) {
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
