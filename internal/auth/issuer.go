package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/crown/internal/domain"
	"github.com/dukerupert/crown/internal/telemetry"
)

// maxTokenResponseSize caps how much of the token endpoint's body is read.
const maxTokenResponseSize = 1 << 20

// IssuerConfig contains configuration for the token issuer.
type IssuerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// AuthPayload is an optional form body template; see RenderAuthPayload.
	AuthPayload string

	// ExpireEarly is subtracted from every token lifetime.
	ExpireEarly time.Duration

	HTTPClient *http.Client              // Optional: defaults to a client with a 30s timeout
	Logger     *slog.Logger              // Optional: defaults to slog.Default()
	Metrics    *telemetry.CarrierMetrics // Optional
	Now        func() time.Time          // Optional: defaults to time.Now
}

// Issuer performs the client-credentials exchange and keeps the result in a
// Cache. Concurrent refreshes are collapsed into one exchange.
type Issuer struct {
	cfg    IssuerConfig
	cache  *Cache
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewIssuer creates an issuer that stores tokens in cache.
func NewIssuer(cfg IssuerConfig, cache *Cache) *Issuer {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Issuer{
		cfg:    cfg,
		cache:  cache,
		client: client,
		logger: logger.With("component", "token_issuer"),
		now:    now,
	}
}

// Ready reports whether a valid token is cached.
func (i *Issuer) Ready() bool {
	return i.cache.IsValid()
}

// EnsureValid returns the cached token if it is still valid, and otherwise
// exchanges for a new one. A token returned by a fresh exchange is handed
// back even if the early-refresh margin already expired it.
func (i *Issuer) EnsureValid(ctx context.Context) (*BearerToken, error) {
	if tok, ok := i.cache.Current(); ok {
		i.cfg.Metrics.ObserveTokenCacheHit()
		return tok, nil
	}

	// The shared exchange must not die with whichever caller started it.
	ch := i.group.DoChan("token", func() (interface{}, error) {
		if tok, ok := i.cache.Current(); ok {
			return tok, nil
		}
		return i.Exchange(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*BearerToken), nil
	case <-ctx.Done():
		// No token was obtained, so callers answer with an auth failure.
		return nil, domain.WrapError(ctx.Err(), domain.EUNAUTHORIZED, "fedex.ensure_token", "Timed out waiting for carrier token")
	}
}

// Exchange requests a new token from the carrier and installs it in the
// cache. On any failure the cache is left as it was.
func (i *Issuer) Exchange(ctx context.Context) (*BearerToken, error) {
	const op = "fedex.exchange"

	start := time.Now()
	body := RenderAuthPayload(i.cfg.AuthPayload, i.cfg.ClientID, i.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.TokenURL, strings.NewReader(body))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	issuedAt := i.now()
	resp, err := i.client.Do(req)
	if err != nil {
		i.cfg.Metrics.ObserveTokenExchange("transport_error", time.Since(start))
		i.logger.Error("token request failed", "error", err)
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, op, "Unable to reach carrier token endpoint")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		i.cfg.Metrics.ObserveTokenExchange("transport_error", time.Since(start))
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, op, "Failed to read carrier token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		i.cfg.Metrics.ObserveTokenExchange("rejected", time.Since(start))
		i.logger.Error("token request rejected", "status", resp.StatusCode, "body", string(respBody))
		return nil, domain.WrapError(
			fmt.Errorf("token endpoint returned status %d", resp.StatusCode),
			domain.EUNAUTHORIZED, op, "Carrier rejected client credentials",
		)
	}

	tok, err := parseToken(respBody, issuedAt, i.cfg.ExpireEarly)
	if err != nil {
		i.cfg.Metrics.ObserveTokenExchange("invalid_response", time.Since(start))
		i.logger.Error("failed to initialize token from response", "error", err)
		return nil, err
	}

	i.cache.Replace(tok)
	i.cfg.Metrics.ObserveTokenExchange("success", time.Since(start))
	i.cfg.Metrics.SetTokenExpiry(tok.ExpiresAt)
	i.logger.Debug("carrier token refreshed", "token", tok)

	return tok, nil
}

// RenderAuthPayload builds the token request body. Each "{}" in tmpl is
// replaced in order by the form-escaped client id and client secret. An empty
// template yields a standard client_credentials body.
func RenderAuthPayload(tmpl, clientID, clientSecret string) string {
	if tmpl == "" {
		return url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		}.Encode()
	}

	out := strings.Replace(tmpl, "{}", url.QueryEscape(clientID), 1)
	return strings.Replace(out, "{}", url.QueryEscape(clientSecret), 1)
}
