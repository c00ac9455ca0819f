package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/provider"
)

// Adapter supplies the backend-specific pieces of a process provider.
//
// BuildArgs returns the adapter's flags only; the shared Provider assembles
// the full argument vector as BuildArgs(req) + req.PassthroughArgs + the
// message as the final positional argument. Passthrough args therefore sit in
// a fixed position: after all adapter-built flags, before the message.
type Adapter interface {
	Descriptor() core.ProviderDescriptor
	// Command resolves the executable name, honoring environment overrides.
	Command(cfg provider.Config) string
	// BuildArgs builds the flag portion of the argument vector.
	BuildArgs(req core.InvocationRequest) []string
	// Normalize post-processes raw stdout into plain text plus the backend
	// session id ("" when the protocol has no continuity).
	Normalize(stdout string) (text, backendSessionID string, err error)
	// Remediation is actionable guidance shown when the executable is
	// missing.
	Remediation() string
}

// Runner executes a child process and returns its exit code. env holds
// KEY=VALUE overrides layered on the inherited environment. A non-zero exit
// is not an error; err is reserved for start/system failures. This is the
// seam tests use to substitute scripted backends.
type Runner func(ctx context.Context, command string, args []string, env []string, stdout, stderr io.Writer) (int, error)

// Options holds overrides passed to New().
type Options struct {
	// Runner executes the child process. Defaults to an os/exec based
	// implementation.
	Runner Runner
	// Logger receives adapter diagnostics. Defaults to the registry config
	// logger.
	Logger logging.Logger
}

// Provider executes an Adapter as a child process, implementing the uniform
// provider contract.
type Provider struct {
	adapter Adapter
	cfg     provider.Config
	runner  Runner
	logger  logging.Logger
}

// Compile-time interface assertion.
var _ provider.Provider = (*Provider)(nil)

// New constructs a process provider around an adapter.
func New(adapter Adapter, cfg provider.Config, optFns ...func(o *Options)) *Provider {
	opts := Options{Runner: execRunner, Logger: cfg.Logger}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Provider{adapter: adapter, cfg: cfg, runner: opts.Runner, logger: opts.Logger}
}

// Descriptor implements provider.Provider.
func (p *Provider) Descriptor() core.ProviderDescriptor { return p.adapter.Descriptor() }

// Invoke implements provider.Provider.
func (p *Provider) Invoke(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error) {
	command := p.adapter.Command(p.cfg)

	args := p.adapter.BuildArgs(req)
	args = append(args, req.PassthroughArgs...)
	args = append(args, req.Message)

	env := make([]string, 0, len(p.cfg.Env)+len(req.Env))
	for k, v := range p.cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}

	var stdoutBuf, stderrBuf strings.Builder
	stdout := io.Writer(&stdoutBuf)
	if req.Stdout != nil {
		stdout = io.MultiWriter(&stdoutBuf, req.Stdout)
	}
	stderr := io.Writer(&stderrBuf)
	if req.Stderr != nil {
		stderr = io.MultiWriter(&stderrBuf, req.Stderr)
	}

	p.logger.Debug("spawning backend command=%s args=%d", command, len(args))
	exitCode, err := p.runner(ctx, command, args, env, stdout, stderr)
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return core.InvocationResult{}, &core.CommandMissingError{Command: command, Remediation: p.adapter.Remediation()}
		case errors.Is(ctx.Err(), context.Canceled):
			return core.InvocationResult{}, fmt.Errorf("%s: %w", command, core.ErrCancelled)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return core.InvocationResult{}, fmt.Errorf("%s: %w", command, context.DeadlineExceeded)
		default:
			return core.InvocationResult{}, &core.ProviderRuntimeError{ProviderID: p.adapter.Descriptor().ID, Err: err}
		}
	}
	if ctx.Err() != nil {
		// Child was killed by cancellation or deadline expiry.
		if errors.Is(ctx.Err(), context.Canceled) {
			return core.InvocationResult{}, fmt.Errorf("%s: %w", command, core.ErrCancelled)
		}
		return core.InvocationResult{}, fmt.Errorf("%s: %w", command, ctx.Err())
	}

	if exitCode != 0 {
		res := core.InvocationResult{ExitCode: exitCode, Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}
		return res, &core.ProviderRuntimeError{
			ProviderID: p.adapter.Descriptor().ID,
			Err:        fmt.Errorf("%s exited with code %d: %s", command, exitCode, tail(stderrBuf.String(), 400)),
		}
	}

	text, sessionID, err := p.adapter.Normalize(stdoutBuf.String())
	if err != nil {
		return core.InvocationResult{}, &core.ProviderRuntimeError{ProviderID: p.adapter.Descriptor().ID, Err: err}
	}
	return core.InvocationResult{
		ExitCode:         0,
		Stdout:           text,
		Stderr:           stderrBuf.String(),
		BackendSessionID: sessionID,
	}, nil
}

// InvokeAuth implements provider.Provider. Credential setup for CLI backends
// happens through the tool's own UX, so process providers do not declare the
// auth capability.
func (p *Provider) InvokeAuth(_ context.Context, _ core.InvocationRequest) (core.InvocationResult, error) {
	return core.InvocationResult{}, &core.UnsupportedProviderActionError{
		ProviderID: p.adapter.Descriptor().ID,
		Action:     "auth",
	}
}

// execRunner is the default Runner built on os/exec. The context kills the
// child process on cancellation.
func execRunner(ctx context.Context, command string, args []string, env []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
