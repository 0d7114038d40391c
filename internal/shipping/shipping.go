// Package shipping talks to the shipping carrier's HTTP APIs.
package shipping

import (
	"context"

	"github.com/dukerupert/crown/internal/address"
	"github.com/dukerupert/crown/internal/auth"
)

// TokenSource supplies a bearer token that is valid for the next carrier call.
// *auth.Issuer implements it.
type TokenSource interface {
	EnsureValid(ctx context.Context) (*auth.BearerToken, error)
}

// Carrier request headers.
const (
	headerTransactionID = "x-customer-transaction-id"
	headerLocale        = "X-locale"
)

// DefaultLocale is sent in the X-locale header when none is configured.
const DefaultLocale = "en_US"

var _ address.Validator = (*FedExClient)(nil)
