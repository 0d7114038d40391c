// Package domain provides the error taxonomy and context helpers shared by the
// Crown Logistics carrier proxy.
//
// Context helpers centralize request-scoped data access so the request id can
// be read by logging and error reporting without threading it through every
// call.
package domain

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// requestIDContextKey stores the inbound request ID for tracing.
	requestIDContextKey contextKey = iota
)

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
