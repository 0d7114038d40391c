package address

import (
	"context"
	"net/http"
)

// MockValidator is a test implementation of Validator.
type MockValidator struct {
	ValidateFunc func(ctx context.Context, addr Address) (*Result, error)

	// Calls records every address passed to Validate.
	Calls []Address
}

// NewMockValidator creates a mock validator that answers 200 with an empty
// JSON object unless ValidateFunc is set.
func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

// Validate delegates to the configured function or returns a default result.
func (m *MockValidator) Validate(ctx context.Context, addr Address) (*Result, error) {
	m.Calls = append(m.Calls, addr)
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, addr)
	}
	return &Result{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        []byte("{}"),
	}, nil
}
