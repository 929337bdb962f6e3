// Package logging defines a minimal structured-logging interface used by the
// protocol handler for per-packet tracing: session id, username, remote
// address. The standard log package is still used for a config load failure
// (logged before this logger exists) and for the Postgres store's auth-log
// write failures.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// interpreted as key-value pairs, e.g. log.Info(ctx, "auth ok", "session", id).
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
