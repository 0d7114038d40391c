package shipping

import "github.com/dukerupert/crown/internal/domain"

// ============================================================================
// CARRIER CLIENT ERRORS
// ============================================================================
// Configuration errors are returned by the constructor. Request errors are
// built per call with domain.Upstream so timeouts map to 504.

var (
	// ErrMissingEndpoint is returned when no validation URL is configured.
	ErrMissingEndpoint = &domain.Error{
		Code:    domain.EINTERNAL,
		Op:      "fedex.new_client",
		Message: "Carrier address validation URL is required",
	}

	// ErrMissingTokenSource is returned when no token source is configured.
	ErrMissingTokenSource = &domain.Error{
		Code:    domain.EINTERNAL,
		Op:      "fedex.new_client",
		Message: "Carrier token source is required",
	}
)
