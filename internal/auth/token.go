// Package auth manages the carrier's OAuth2 client-credentials token: the
// exchange with the token endpoint and the single-slot cache in front of it.
package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/crown/internal/domain"
)

// BearerToken is one access token issued by the carrier. Values are never
// modified after parseToken returns them.
type BearerToken struct {
	RawJSON     string
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds, as reported by the carrier
	Scope       string
	IssuedAt    time.Time

	// ExpiresAt is IssuedAt + ExpiresIn - the configured early-refresh margin.
	ExpiresAt time.Time
}

// ValidAt reports whether the token may still be used at t.
func (t *BearerToken) ValidAt(at time.Time) bool {
	return t != nil && at.Before(t.ExpiresAt)
}

// AuthorizationHeader returns the value for the Authorization header.
func (t *BearerToken) AuthorizationHeader() string {
	return "Bearer " + t.AccessToken
}

// LogValue implements slog.LogValuer with the access token masked.
func (t *BearerToken) LogValue() slog.Value {
	if t == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("access_token", strings.Repeat("*", len(t.AccessToken))),
		slog.String("token_type", t.TokenType),
		slog.Int64("expires_in", t.ExpiresIn),
		slog.String("scope", t.Scope),
		slog.Time("expires_at", t.ExpiresAt),
	)
}

// tokenResponse is the token endpoint's JSON body. Pointers distinguish a
// missing field from a zero value.
type tokenResponse struct {
	AccessToken *string      `json:"access_token"`
	TokenType   *string      `json:"token_type"`
	ExpiresIn   *json.Number `json:"expires_in"`
	Scope       *string      `json:"scope"`
}

// parseToken builds a BearerToken from a token endpoint response body.
// All four fields are required.
func parseToken(body []byte, issuedAt time.Time, expireEarly time.Duration) (*BearerToken, error) {
	const op = "fedex.parse_token"

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, op, "Failed to load OAuth token response")
	}

	var missing []string
	if resp.AccessToken == nil || *resp.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if resp.TokenType == nil || *resp.TokenType == "" {
		missing = append(missing, "token_type")
	}
	if resp.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if resp.Scope == nil {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return nil, domain.Errorf(domain.EUNAUTHORIZED, op, "OAuth token response missing %s", strings.Join(missing, ", "))
	}

	expiresIn, err := resp.ExpiresIn.Int64()
	if err != nil {
		return nil, domain.WrapError(fmt.Errorf("expires_in %q: %w", resp.ExpiresIn.String(), err),
			domain.EUNAUTHORIZED, op, "OAuth token response has invalid expires_in")
	}

	return &BearerToken{
		RawJSON:     string(body),
		AccessToken: *resp.AccessToken,
		TokenType:   *resp.TokenType,
		ExpiresIn:   expiresIn,
		Scope:       *resp.Scope,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(time.Duration(expiresIn)*time.Second - expireEarly),
	}, nil
}
