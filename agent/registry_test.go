package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func writeManifest(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRegistry_LoadBothLayouts(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "orchestrator/AGENT.md", "---\nid: orchestrator\npriority: 90\ndelegation:\n  canDelegate: true\n---\nRoute work.\n")
	writeManifest(t, dir, "qa-agent.md", "Run the tests.\n")

	r, err := NewRegistry(dir)
	require.NoError(t, err)

	orch, ok := r.Get("orchestrator")
	require.True(t, ok)
	assert.True(t, orch.Delegation.CanDelegate)
	assert.Equal(t, 90, orch.Priority)

	qa, ok := r.Get("QA_Agent")
	require.True(t, ok)
	assert.Equal(t, "qa-agent", qa.ID)
	assert.Equal(t, core.DefaultPriority, qa.Priority)
}

func TestRegistry_MissingDirIsEmpty(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, r.List())
}

func TestRegistry_ListPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "low.md", "---\nid: low\npriority: 10\n---\n")
	writeManifest(t, dir, "high.md", "---\nid: high\npriority: 80\n---\n")
	writeManifest(t, dir, "also-high.md", "---\nid: also-high\npriority: 80\n---\n")

	r, err := NewRegistry(dir)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "also-high", list[0].ID) // tie-break on id
	assert.Equal(t, "high", list[1].ID)
	assert.Equal(t, "low", list[2].ID)
}

func TestRegistry_DiscoverableFiltersHidden(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "visible.md", "---\nid: visible\n---\n")
	writeManifest(t, dir, "hidden.md", "---\nid: hidden\ndiscoverable: false\n---\n")

	r, err := NewRegistry(dir)
	require.NoError(t, err)

	disc := r.Discoverable()
	require.Len(t, disc, 1)
	assert.Equal(t, "visible", disc[0].ID)
}

func TestRegistry_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	m := Manifest{
		Descriptor: core.AgentDescriptor{
			ID:           "Dev Helper",
			DisplayName:  "Dev Helper",
			Provider:     "codex",
			Discoverable: true,
			Delegation:   core.Delegation{CanReceive: true},
		},
		Body: "Write code.\n",
	}
	require.NoError(t, r.Save(m))

	// round-trips through a fresh registry
	fresh, err := NewRegistry(dir)
	require.NoError(t, err)
	d, ok := fresh.Get("dev-helper")
	require.True(t, ok)
	assert.Equal(t, "codex", d.Provider)
	assert.Equal(t, core.DefaultPriority, d.Priority)

	require.NoError(t, r.Delete("dev-helper"))
	_, ok = r.Get("dev-helper")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Delete("dev-helper"), core.ErrAgentNotFound)
}
