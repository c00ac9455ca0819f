package agentrelay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
	"github.com/hupe1980/agentrelay/provider"
	"github.com/hupe1980/agentrelay/session"
)

// scriptedProvider plays back canned results for façade-level tests.
type scriptedProvider struct {
	results []core.InvocationResult
}

func (s *scriptedProvider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:           "scripted",
		DisplayName:  "Scripted",
		Kind:         core.ProviderKindProcess,
		Capabilities: core.Capabilities{Agent: true, Model: true, Passthrough: true},
	}
}

func (s *scriptedProvider) Invoke(_ context.Context, _ core.InvocationRequest) (core.InvocationResult, error) {
	if len(s.results) == 0 {
		return core.InvocationResult{}, fmt.Errorf("script exhausted")
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res, nil
}

func (s *scriptedProvider) InvokeAuth(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error) {
	return s.Invoke(ctx, req)
}

func writeManifest(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".md"), []byte(body), 0o644))
}

func newTestRelay(t *testing.T, scripted *scriptedProvider) *AgentRelay {
	t.Helper()
	agentsDir := t.TempDir()
	writeManifest(t, agentsDir, "orchestrator", `---
id: orchestrator
name: Orchestrator
description: Coordinates the team
provider: scripted
delegation:
  canReceive: true
  canDelegate: true
priority: 80
---

You coordinate work across the team.
`)
	writeManifest(t, agentsDir, "developer", `---
id: developer
name: Developer
description: Writes code
provider: scripted
---

You implement tasks.
`)

	relay, err := New(func(o *Options) {
		o.AgentsDir = agentsDir
		o.SessionStore = session.NewFileStore(t.TempDir())
		o.TracesDir = t.TempDir()
	})
	require.NoError(t, err)
	relay.RegisterProvider("scripted", func(provider.Config) (provider.Provider, error) {
		return scripted, nil
	})
	return relay
}

func TestNewRegistersBuiltinProviders(t *testing.T) {
	relay, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "claude", "codex", "gemini", "openai", "openai-compat"}, relay.ProviderIDs())

	d, err := relay.ProviderDescriptor("claude")
	require.NoError(t, err)
	assert.Equal(t, core.ProviderKindProcess, d.Kind)
	assert.True(t, d.Capabilities.Passthrough)
}

func TestRunAgentEndToEnd(t *testing.T) {
	scripted := &scriptedProvider{results: []core.InvocationResult{
		{Stdout: `{"action":"delegate_to_agent","target_agent_id":"developer","message":"build the feature"}`},
		{Stdout: `{"action":"finish","message":"feature built"}`},
	}}
	relay := newTestRelay(t, scripted)

	res, err := relay.RunAgent(context.Background(), "orchestrator", func(o *engine.RunOptions) {
		o.Message = "ship it"
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusDone, res.Status)
	assert.Equal(t, "feature built", res.Output)
	require.Len(t, res.Steps, 2)
	assert.FileExists(t, res.TracePath)

	// Both agents kept their transcripts.
	history, err := relay.GetHistory("orchestrator", core.DefaultSessionKey)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	history, err = relay.GetHistory("developer", core.DefaultSessionKey)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSessionAdministration(t *testing.T) {
	scripted := &scriptedProvider{results: []core.InvocationResult{
		{Stdout: `{"action":"finish","message":"done"}`},
	}}
	relay := newTestRelay(t, scripted)

	_, err := relay.RunAgent(context.Background(), "orchestrator", func(o *engine.RunOptions) {
		o.Message = "small task"
	})
	require.NoError(t, err)

	sessions, err := relay.ListSessions("orchestrator")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	firstID := sessions[0].ID

	renamed, err := relay.RenameSession("orchestrator", core.DefaultSessionKey, "kickoff")
	require.NoError(t, err)
	assert.Equal(t, "kickoff", renamed.Title)

	compacted, err := relay.CompactSession("orchestrator", core.DefaultSessionKey)
	require.NoError(t, err)
	assert.True(t, compacted.Applied)
	assert.Equal(t, 2, compacted.Compacted)

	reset, err := relay.ResetSession("orchestrator", core.DefaultSessionKey)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, reset.ID)

	require.NoError(t, relay.RemoveSession("orchestrator", core.DefaultSessionKey))
	_, err = relay.GetHistory("orchestrator", core.DefaultSessionKey)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestCreateAgentRequiresProviderCapability(t *testing.T) {
	relay, err := New()
	require.NoError(t, err)

	m := agent.Manifest{
		Descriptor: core.AgentDescriptor{ID: "helper", DisplayName: "Helper", Provider: "codex"},
		Body:       "Help out.",
	}
	err = relay.CreateAgent(m)

	var unsupported *core.UnsupportedProviderActionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "agentCreate", unsupported.Action)
}

func TestCreateAndDeleteAgentWithCapableProvider(t *testing.T) {
	agentsDir := t.TempDir()
	relay, err := New(func(o *Options) { o.AgentsDir = agentsDir })
	require.NoError(t, err)

	m := agent.Manifest{
		Descriptor: core.AgentDescriptor{
			ID:           "Helper Agent",
			DisplayName:  "Helper",
			Provider:     "claude",
			Discoverable: true,
			Delegation:   core.Delegation{CanReceive: true},
		},
		Body: "Help out.",
	}
	require.NoError(t, relay.CreateAgent(m))

	d, ok := relay.GetAgent("helper-agent")
	require.True(t, ok)
	assert.Equal(t, "claude", d.Provider)

	require.NoError(t, relay.DeleteAgent("helper-agent"))
	_, ok = relay.GetAgent("helper-agent")
	assert.False(t, ok)
}

func TestAuthenticateProviderWithoutCapabilityFailsFast(t *testing.T) {
	relay, err := New()
	require.NoError(t, err)

	_, err = relay.AuthenticateProvider(context.Background(), "gemini")

	var unsupported *core.UnsupportedProviderActionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "auth", unsupported.Action)
}
