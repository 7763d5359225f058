// Package logging holds the Logger interface every ragmesh component accepts
// through its options, plus the implementations:
//
//   - MeshLogger, slog-backed, tagging entries with component, session and invocation
//   - SlogAdapter for applications that already own a *slog.Logger
//   - NoOpLogger, the default when no logger is configured
//
// With decorates any Logger with extra attributes for the lifetime of a request.
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json"})
//	assistant, err := ragmesh.New(cfg, func(o *ragmesh.Options) { o.Logger = logger })
//
// Arguments after the message are slog key/value pairs.
package logging
