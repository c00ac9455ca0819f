package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Named provider actions used in capability validation errors.
const (
	actionAgent       = "agent"
	actionModel       = "model"
	actionAuth        = "auth"
	actionPassthrough = "passthrough"
)

// RuntimeOptions holds dependency + configuration overrides passed to
// NewRuntime().
type RuntimeOptions struct {
	// DefaultTimeout is the wall-clock budget per invocation when no
	// per-provider override exists. Zero disables the deadline.
	DefaultTimeout time.Duration
	// Timeouts overrides the invocation budget per provider id.
	Timeouts map[string]time.Duration
	// Logger receives invocation diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Runtime fronts the provider registry with the shared invocation lifecycle:
// capability validation (before any process or network I/O), wall-clock
// timeouts, cancellation mapping and error classification. All adapter-level
// errors leave the runtime classified into the core taxonomy.
type Runtime struct {
	registry *Registry

	defaultTimeout time.Duration
	timeouts       map[string]time.Duration
	logger         logging.Logger
}

// NewRuntime constructs a Runtime over a registry with optional overrides.
func NewRuntime(registry *Registry, optFns ...func(o *RuntimeOptions)) *Runtime {
	opts := RuntimeOptions{
		DefaultTimeout: 5 * time.Minute,
		Timeouts:       map[string]time.Duration{},
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{
		registry:       registry,
		defaultTimeout: opts.DefaultTimeout,
		timeouts:       opts.Timeouts,
		logger:         opts.Logger,
	}
}

// Descriptor returns the descriptor of a registered provider.
func (rt *Runtime) Descriptor(providerID string) (core.ProviderDescriptor, error) {
	p, err := rt.registry.Resolve(providerID)
	if err != nil {
		return core.ProviderDescriptor{}, err
	}
	return p.Descriptor(), nil
}

// Invoke validates and executes one invocation against the named provider.
func (rt *Runtime) Invoke(ctx context.Context, providerID string, req core.InvocationRequest) (core.InvocationResult, error) {
	return rt.invoke(ctx, providerID, req, false)
}

// InvokeAuth validates and executes an authentication invocation. Providers
// without the auth capability fail fast with no I/O.
func (rt *Runtime) InvokeAuth(ctx context.Context, providerID string, req core.InvocationRequest) (core.InvocationResult, error) {
	return rt.invoke(ctx, providerID, req, true)
}

func (rt *Runtime) invoke(ctx context.Context, providerID string, req core.InvocationRequest, auth bool) (core.InvocationResult, error) {
	p, err := rt.registry.Resolve(providerID)
	if err != nil {
		return core.InvocationResult{}, err
	}
	d := p.Descriptor()

	if err := validateRequest(d, req, auth); err != nil {
		return core.InvocationResult{}, err
	}

	timeout := rt.defaultTimeout
	if t, ok := rt.timeouts[providerID]; ok {
		timeout = t
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var res core.InvocationResult
	if auth {
		res, err = p.InvokeAuth(ctx, req)
	} else {
		res, err = p.Invoke(ctx, req)
	}
	err = classify(d.ID, ctx, err)
	dur := time.Since(start)

	if ml, ok := rt.logger.(logging.InvocationLogger); ok {
		ml.LogInvocation(d.ID, dur, res.ExitCode, err)
	} else if err != nil {
		rt.logger.Warn("invocation failed provider=%s duration=%s err=%v", d.ID, dur, err)
	} else {
		rt.logger.Debug("invocation completed provider=%s duration=%s exit_code=%d", d.ID, dur, res.ExitCode)
	}
	return res, err
}

// validateRequest checks the request against the provider's declared
// capabilities. It runs before any I/O so unsupported actions never touch a
// process or the network.
func validateRequest(d core.ProviderDescriptor, req core.InvocationRequest, auth bool) error {
	if auth && !d.Capabilities.Auth {
		return &core.UnsupportedProviderActionError{ProviderID: d.ID, Action: actionAuth}
	}
	if !auth && !d.Capabilities.Agent {
		return &core.UnsupportedProviderActionError{ProviderID: d.ID, Action: actionAgent}
	}
	if req.Model != "" && !d.Capabilities.Model {
		return &core.UnsupportedProviderActionError{ProviderID: d.ID, Action: actionModel}
	}
	if len(req.PassthroughArgs) > 0 && !d.Capabilities.Passthrough {
		return &core.UnsupportedProviderActionError{ProviderID: d.ID, Action: actionPassthrough}
	}
	return nil
}

// classify maps cancellation and deadline expiry onto the core taxonomy.
// Adapter-specific classification (auth, 404 fallback, command missing)
// happens inside the adapters; this is the shared last line.
func classify(providerID string, ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, core.ErrCancelled):
		return err
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("provider %s: %w", providerID, core.ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return &core.ProviderRuntimeError{ProviderID: providerID, Err: fmt.Errorf("invocation timed out: %w", err)}
	default:
		return err
	}
}
