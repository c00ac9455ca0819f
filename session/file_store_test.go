package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func newStores(t *testing.T) map[string]core.SessionStore {
	t.Helper()
	return map[string]core.SessionStore{
		"file":   NewFileStore(t.TempDir()),
		"memory": NewInMemoryStore(),
	}
}

func TestStore_EnsureIsLazyAndStable(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := store.Ensure("orchestrator", "main")
			require.NoError(t, err)
			assert.Equal(t, "main", first.Key)
			assert.NotEmpty(t, first.ID)

			again, err := store.Ensure("orchestrator", "main")
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)
		})
	}
}

func TestStore_ResolveOrder(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			main, err := store.Ensure("dev", "main")
			require.NoError(t, err)
			feature, err := store.Ensure("dev", "feature")
			require.NoError(t, err)

			// exact key match
			got, err := store.Resolve("dev", "feature")
			require.NoError(t, err)
			assert.Equal(t, feature.ID, got.ID)

			// exact id match
			got, err = store.Resolve("dev", feature.ID)
			require.NoError(t, err)
			assert.Equal(t, "feature", got.Key)

			// unknown ref falls back to main
			got, err = store.Resolve("dev", "no-such-ref")
			require.NoError(t, err)
			assert.Equal(t, main.ID, got.ID)
		})
	}

	// no sessions at all: not found
	store := NewInMemoryStore()
	_, err := store.Resolve("empty", "anything")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestStore_AppendUpdatesCountersAndHistory(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Append("qa", "main", core.TranscriptEntry{Role: "user", Text: "run the tests"}))
			require.NoError(t, store.Append("qa", "main", core.TranscriptEntry{Role: "assistant", Text: "all 42 tests pass"}))

			info, err := store.Resolve("qa", "main")
			require.NoError(t, err)
			assert.Equal(t, len("run the tests"), info.InputChars)
			assert.Equal(t, len("all 42 tests pass"), info.OutputChars)

			history, err := store.History("qa", "main")
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, "user", history[0].Role)
			assert.Equal(t, "run the tests", history[0].Text)
			assert.Equal(t, "assistant", history[1].Role)
			assert.False(t, history[1].Timestamp.IsZero())
		})
	}
}

func TestStore_AdoptBackendID(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := store.Ensure("dev", "main")
			require.NoError(t, err)
			assert.False(t, first.BackendAttached)

			require.NoError(t, store.AdoptBackendID("dev", "main", "backend-1234"))
			info, err := store.Resolve("dev", "main")
			require.NoError(t, err)
			assert.Equal(t, "backend-1234", info.ID)
			assert.True(t, info.BackendAttached)

			// resolvable by the adopted id too
			byID, err := store.Resolve("dev", "backend-1234")
			require.NoError(t, err)
			assert.Equal(t, "main", byID.Key)

			assert.ErrorIs(t, store.AdoptBackendID("dev", "absent", "x"), core.ErrSessionNotFound)
		})
	}
}

func TestStore_ResetKeepsKeyDetachesTranscript(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Append("dev", "main", core.TranscriptEntry{Role: "user", Text: "hello"}))
			require.NoError(t, store.AdoptBackendID("dev", "main", "backend-9"))
			before, err := store.Resolve("dev", "main")
			require.NoError(t, err)

			after, err := store.Reset("dev", "main")
			require.NoError(t, err)
			assert.Equal(t, "main", after.Key)
			assert.NotEqual(t, before.ID, after.ID)
			assert.NotEqual(t, before.TranscriptPath, after.TranscriptPath)
			// The fresh session starts over without backend continuity.
			assert.False(t, after.BackendAttached)

			history, err := store.History("dev", "main")
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestStore_RenameAndRemove(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Ensure("dev", "main")
			require.NoError(t, err)

			info, err := store.Rename("dev", "main", "Feature work")
			require.NoError(t, err)
			assert.Equal(t, "Feature work", info.Title)

			require.NoError(t, store.Remove("dev", "main"))
			list, err := store.List("dev")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestStore_CompactIsIdempotent(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Append("dev", "main", core.TranscriptEntry{Role: "user", Text: "one"}))
			require.NoError(t, store.Append("dev", "main", core.TranscriptEntry{Role: "assistant", Text: "two"}))

			first, err := store.Compact("dev", "main")
			require.NoError(t, err)
			assert.True(t, first.Applied)
			assert.Equal(t, 2, first.Compacted)

			info, err := store.Resolve("dev", "main")
			require.NoError(t, err)
			assert.Equal(t, 1, info.CompactionCount)

			// second compaction with no new messages is a no-op
			second, err := store.Compact("dev", "main")
			require.NoError(t, err)
			assert.False(t, second.Applied)
			assert.Zero(t, second.Compacted)

			info, err = store.Resolve("dev", "main")
			require.NoError(t, err)
			assert.Equal(t, 1, info.CompactionCount)

			// new messages after compaction are compactable again
			require.NoError(t, store.Append("dev", "main", core.TranscriptEntry{Role: "user", Text: "three"}))
			third, err := store.Compact("dev", "main")
			require.NoError(t, err)
			assert.True(t, third.Applied)
			assert.Equal(t, 1, third.Compacted)

			history, err := store.History("dev", "main")
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.True(t, history[0].IsCompaction())
		})
	}
}

func TestStore_BeginRunSingleWriter(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			release, err := store.BeginRun("dev", "main")
			require.NoError(t, err)

			_, err = store.BeginRun("dev", "main")
			assert.ErrorIs(t, err, core.ErrSessionBusy)

			// other keys and agents are unaffected
			otherRelease, err := store.BeginRun("dev", "feature")
			require.NoError(t, err)
			otherRelease()

			release()
			release() // idempotent

			again, err := store.BeginRun("dev", "main")
			require.NoError(t, err)
			again()
		})
	}
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Append("orchestrator", "main", core.TranscriptEntry{Role: "user", Text: "persist me"}))
	require.NoError(t, store.AdoptBackendID("orchestrator", "main", "backend-99"))

	reopened := NewFileStore(dir)
	info, err := reopened.Resolve("orchestrator", "main")
	require.NoError(t, err)
	assert.Equal(t, "backend-99", info.ID)

	history, err := reopened.History("orchestrator", "main")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "persist me", history[0].Text)

	// index file is the documented JSON mapping
	_, err = os.Stat(filepath.Join(dir, "orchestrator", "sessions.json"))
	assert.NoError(t, err)
}

func TestParseTranscript_ToleratesLeadingJunk(t *testing.T) {
	raw := "scribbles before any entry\n\n## user | 2026-01-02T03:04:05Z\n\nhi there\n\n## assistant | 2026-01-02T03:04:06Z\n\nhello\n"
	entries := parseTranscript(raw)
	require.Len(t, entries, 2)
	assert.Equal(t, "hi there", entries[0].Text)
	assert.Equal(t, "assistant", entries[1].Role)
}
