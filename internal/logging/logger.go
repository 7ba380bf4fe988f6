// Package logging defines the structured-logging interface the server and
// client code log through. The concrete implementation wraps slog; keeping
// the interface small makes it trivial to swap or silence in tests.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// key-value pairs:
//
//	log.Info(ctx, "credential registered", "user", userName, "class", class)
type Logger interface {
	// Info records normal operation: ceremonies completing, servers starting.
	Info(ctx context.Context, msg string, args ...any)

	// Warn records rejected requests and other unusual but handled events.
	Warn(ctx context.Context, msg string, args ...any)

	// Error records failures that need operator attention.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger whose records always carry the given
	// key-value pairs, e.g. With("component", "credential-authority").
	With(args ...any) Logger
}
