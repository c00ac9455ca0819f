package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAgentID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "qa-agent", "qa-agent"},
		{"uppercase", "Product-Manager", "product-manager"},
		{"spaces", "  Product Manager ", "product-manager"},
		{"underscores", "qa_agent", "qa-agent"},
		{"mixed junk", "QA Agent!! (v2)", "qa-agent-v2"},
		{"collapses hyphens", "a--b---c", "a-b-c"},
		{"trims hyphens", "-agent-", "agent"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAgentID(tt.input))
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	require.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestPlanningDecision_Predicates(t *testing.T) {
	d := PlanningDecision{Action: ActionDelegate, TargetAgentID: "developer", Message: "build it"}
	assert.True(t, d.IsDelegate())
	assert.False(t, d.IsFinish())

	f := PlanningDecision{Action: ActionFinish, Message: "done"}
	assert.True(t, f.IsFinish())
	assert.False(t, f.IsDelegate())
}

func TestAgentDescriptor_HasTag(t *testing.T) {
	d := AgentDescriptor{Tags: []string{"planning", "qa"}}
	assert.True(t, d.HasTag("qa"))
	assert.False(t, d.HasTag("frontend"))
}

func TestErrorTaxonomy_Matching(t *testing.T) {
	var notFound *ProviderNotFoundError
	err := fmt.Errorf("resolving backend: %w", &ProviderNotFoundError{ProviderID: "nope"})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.ProviderID)

	var runtimeErr *ProviderRuntimeError
	inner := errors.New("boom")
	err = &ProviderRuntimeError{ProviderID: "httpapi", StatusCode: 404, Err: inner}
	require.ErrorAs(t, err, &runtimeErr)
	assert.ErrorIs(t, err, inner)

	wrapped := fmt.Errorf("run aborted: %w", ErrCancelled)
	assert.ErrorIs(t, wrapped, ErrCancelled)
}

func TestInvocationResult_OK(t *testing.T) {
	assert.True(t, InvocationResult{ExitCode: 0}.OK())
	assert.False(t, InvocationResult{ExitCode: 1}.OK())
}
