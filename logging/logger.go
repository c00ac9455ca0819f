package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for AgentRelay.
// This allows users to provide their own logger implementation or use the
// built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// InvocationLogger is implemented by loggers that record structured
// per-invocation metrics. The provider runtime upgrades its Logger to this
// interface when available.
type InvocationLogger interface {
	Logger
	LogInvocation(providerID string, dur time.Duration, exitCode int, err error)
}

// RunLogger is implemented by loggers that record aggregate run metrics. The
// engine upgrades its Logger to this interface when available.
type RunLogger interface {
	Logger
	LogRun(status string, steps int, dur time.Duration, err error)
}

// LoggerConfig configures construction of a RelayLogger.
type LoggerConfig struct {
	Level     slog.Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	RunID     string
	AgentID   string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// RelayLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via With* methods.
type RelayLogger struct {
	logger    *slog.Logger
	level     slog.Level
	component string
	runID     string
	agentID   string
}

// Compile-time interface assertions.
var (
	_ InvocationLogger = (*RelayLogger)(nil)
	_ RunLogger        = (*RelayLogger)(nil)
)

// NewLogger builds a RelayLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RelayLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &RelayLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		component: cfg.Component,
		runID:     cfg.RunID,
		agentID:   cfg.AgentID,
	}
}

// WithComponent sets the logical component (engine, provider, session, etc.).
func (l *RelayLogger) WithComponent(c string) *RelayLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithRun attaches run and agent identifiers.
func (l *RelayLogger) WithRun(runID, agentID string) *RelayLogger {
	nl := *l
	nl.runID = runID
	nl.agentID = agentID
	return &nl
}

func (l *RelayLogger) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	if l.agentID != "" {
		attrs = append(attrs, slog.String("agent_id", l.agentID))
	}
	return attrs
}

func (l *RelayLogger) log(level slog.Level, msg string, args ...any) {
	if level < l.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs()...)
}

// Debug logs at debug level.
func (l *RelayLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *RelayLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *RelayLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *RelayLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogInvocation records latency, exit code and success of a backend invocation.
func (l *RelayLogger) LogInvocation(providerID string, dur time.Duration, exitCode int, err error) {
	attrs := l.attrs()
	attrs = append(attrs,
		slog.String("provider", providerID),
		slog.Duration("duration", dur),
		slog.Int("exit_code", exitCode),
	)
	level := slog.LevelInfo
	msg := "Backend invocation completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "Backend invocation failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogRun records aggregate orchestration run metrics.
func (l *RelayLogger) LogRun(status string, steps int, dur time.Duration, err error) {
	attrs := l.attrs()
	attrs = append(attrs,
		slog.String("status", status),
		slog.Int("step_count", steps),
		slog.Duration("duration", dur),
	)
	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
	}
	l.logger.LogAttrs(context.Background(), level, "Orchestration run completed", attrs...)
}
