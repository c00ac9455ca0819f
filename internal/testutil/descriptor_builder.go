package testutil

import (
	"github.com/hupe1980/agentrelay/core"
)

// DescriptorBuilder provides a fluent helper for constructing agent
// descriptors in tests.
// Example:
//
//	d := NewDescriptorBuilder("developer").Provider("claude").CanDelegate().Build()
//
// Chain only the parts you need; defaults match manifest parsing
// (discoverable, canReceive, DefaultPriority).
type DescriptorBuilder struct {
	d core.AgentDescriptor
}

// NewDescriptorBuilder creates a builder for an agent with the given id. The
// display name defaults to the id.
func NewDescriptorBuilder(id string) *DescriptorBuilder {
	return &DescriptorBuilder{d: core.AgentDescriptor{
		ID:           core.NormalizeAgentID(id),
		DisplayName:  id,
		Discoverable: true,
		Delegation:   core.Delegation{CanReceive: true},
		Priority:     core.DefaultPriority,
	}}
}

// Provider sets the backend provider id (chainable).
func (b *DescriptorBuilder) Provider(p string) *DescriptorBuilder { b.d.Provider = p; return b }

// Description sets the descriptor description (chainable).
func (b *DescriptorBuilder) Description(desc string) *DescriptorBuilder {
	b.d.Description = desc
	return b
}

// Hidden marks the agent as not discoverable (chainable).
func (b *DescriptorBuilder) Hidden() *DescriptorBuilder { b.d.Discoverable = false; return b }

// CanDelegate grants the agent the delegate permission (chainable).
func (b *DescriptorBuilder) CanDelegate() *DescriptorBuilder {
	b.d.Delegation.CanDelegate = true
	return b
}

// NoReceive marks the agent as not accepting delegations (chainable).
func (b *DescriptorBuilder) NoReceive() *DescriptorBuilder {
	b.d.Delegation.CanReceive = false
	return b
}

// Priority overrides the listing priority (chainable).
func (b *DescriptorBuilder) Priority(p int) *DescriptorBuilder { b.d.Priority = p; return b }

// Build constructs the core.AgentDescriptor value.
func (b *DescriptorBuilder) Build() core.AgentDescriptor { return b.d }
