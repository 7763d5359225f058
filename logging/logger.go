// Package logging is the structured logging layer shared by every ragmesh
// component. Components depend on the small Logger interface; MeshLogger is
// the slog-backed implementation that carries component, session and
// invocation attributes and knows how to report external calls and routing
// decisions.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel selects the minimum severity a MeshLogger emits.
type LogLevel int

// Supported levels, lowest first.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a case-insensitive level name into a LogLevel. Unknown
// names map to LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger is what components log through. Arguments after the message are
// slog key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter lets an application hand its own *slog.Logger to ragmesh.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }
func (s *SlogAdapter) Info(msg string, args ...any)  { s.Logger.Info(msg, args...) }
func (s *SlogAdapter) Warn(msg string, args ...any)  { s.Logger.Warn(msg, args...) }
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" (default) or "text"
	Output    io.Writer
	AddSource bool
	Component string
	Attrs     map[string]any
}

// DefaultLoggerConfig logs JSON at info level to stdout.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// MeshLogger is an immutable slog-backed Logger. The With* methods return
// copies, so a request can decorate the shared logger without affecting it.
type MeshLogger struct {
	logger       *slog.Logger
	level        LogLevel
	attrs        map[string]any
	component    string
	sessionID    string
	invocationID string
}

// NewLogger builds a MeshLogger. A nil cfg uses DefaultLoggerConfig.
func NewLogger(cfg *LoggerConfig) *MeshLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}
	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	}

	attrs := make(map[string]any, len(cfg.Attrs))
	for k, v := range cfg.Attrs {
		attrs[k] = v
	}
	return &MeshLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		attrs:     attrs,
		component: cfg.Component,
	}
}

func (l *MeshLogger) copy() *MeshLogger {
	c := *l
	c.attrs = make(map[string]any, len(l.attrs))
	for k, v := range l.attrs {
		c.attrs[k] = v
	}
	return &c
}

// WithContext returns a copy that adds key=value to every entry.
func (l *MeshLogger) WithContext(key string, value any) *MeshLogger {
	c := l.copy()
	c.attrs[key] = value
	return c
}

// WithComponent returns a copy tagged with the component name (engine,
// guardrail, memory, retrieval...).
func (l *MeshLogger) WithComponent(component string) *MeshLogger {
	c := l.copy()
	c.component = component
	return c
}

// WithSession returns a copy tagged with the session and invocation ids.
func (l *MeshLogger) WithSession(sessionID, invocationID string) *MeshLogger {
	c := l.copy()
	c.sessionID = sessionID
	c.invocationID = invocationID
	return c
}

func (l *MeshLogger) emit(level LogLevel, msg string, args []any) {
	if level < l.level {
		return
	}
	r := slog.NewRecord(time.Now(), level.slogLevel(), msg, 0)
	for _, a := range []struct{ key, val string }{
		{"component", l.component},
		{"session_id", l.sessionID},
		{"invocation_id", l.invocationID},
	} {
		if a.val != "" {
			r.AddAttrs(slog.String(a.key, a.val))
		}
	}
	for k, v := range l.attrs {
		r.AddAttrs(slog.Any(k, v))
	}
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

func (l *MeshLogger) Debug(msg string, args ...any) { l.emit(LogLevelDebug, msg, args) }
func (l *MeshLogger) Info(msg string, args ...any)  { l.emit(LogLevelInfo, msg, args) }
func (l *MeshLogger) Warn(msg string, args ...any)  { l.emit(LogLevelWarn, msg, args) }
func (l *MeshLogger) Error(msg string, args ...any) { l.emit(LogLevelError, msg, args) }

// LogExternalCall records latency and outcome of a call to an external
// collaborator (retrieval, web search, moderation, completion).
func (l *MeshLogger) LogExternalCall(service string, dur time.Duration, success bool, err error) {
	LogExternalCall(l, service, dur, success, err)
}

// LogRoute records a routing decision and the sufficiency reason behind it.
func (l *MeshLogger) LogRoute(decision string, reason string) {
	LogRoute(l, decision, reason)
}

// LogExternalCall logs an external call outcome on any Logger. Failures are
// reported at Warn, successes at Debug.
func LogExternalCall(l Logger, service string, dur time.Duration, success bool, err error) {
	args := []any{"service", service, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if !success {
		l.Warn("External call failed", args...)
		return
	}
	l.Debug("External call completed", args...)
}

// LogRoute logs a routing decision on any Logger.
func LogRoute(l Logger, decision string, reason string) {
	l.Info("Query routed", "decision", decision, "reason", reason)
}

// With returns a Logger that adds args to every entry. On a MeshLogger the
// component, session_id and invocation_id keys become first-class attributes.
func With(l Logger, args ...any) Logger {
	switch base := OrNoOp(l).(type) {
	case NoOpLogger:
		return base
	case *MeshLogger:
		c := base
		for i := 0; i+1 < len(args); i += 2 {
			key, ok := args[i].(string)
			if !ok {
				continue
			}
			s, _ := args[i+1].(string)
			switch key {
			case "component":
				c = c.WithComponent(s)
			case "session_id":
				c = c.WithSession(s, c.invocationID)
			case "invocation_id":
				c = c.WithSession(c.sessionID, s)
			default:
				c = c.WithContext(key, args[i+1])
			}
		}
		return c
	default:
		return withLogger{next: base, args: args}
	}
}

type withLogger struct {
	next Logger
	args []any
}

func (w withLogger) merge(args []any) []any {
	out := make([]any, 0, len(w.args)+len(args))
	return append(append(out, w.args...), args...)
}

func (w withLogger) Debug(msg string, args ...any) { w.next.Debug(msg, w.merge(args)...) }
func (w withLogger) Info(msg string, args ...any)  { w.next.Info(msg, w.merge(args)...) }
func (w withLogger) Warn(msg string, args ...any)  { w.next.Warn(msg, w.merge(args)...) }
func (w withLogger) Error(msg string, args ...any) { w.next.Error(msg, w.merge(args)...) }

// NoOpLogger drops everything. Components fall back to it when no logger is set.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
