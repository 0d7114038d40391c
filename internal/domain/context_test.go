package domain

import (
	"context"
	"testing"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("RequestIDFromContext returns empty when unset", func(t *testing.T) {
		if got := RequestIDFromContext(context.Background()); got != "" {
			t.Errorf("expected empty request ID, got %q", got)
		}
	})

	t.Run("RequestIDFromContext returns value when set", func(t *testing.T) {
		ctx := NewContextWithRequestID(context.Background(), "req-123")
		if got := RequestIDFromContext(ctx); got != "req-123" {
			t.Errorf("expected %q, got %q", "req-123", got)
		}
	})
}
