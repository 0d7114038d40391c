package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/crown/internal/address"
	"github.com/dukerupert/crown/internal/domain"
	"github.com/dukerupert/crown/internal/telemetry"
)

// maxResponseSize caps how much of a carrier response body is relayed.
const maxResponseSize = 4 << 20

const operationValidateAddress = "validate_address"

// FedExClient implements address.Validator against the FedEx address
// resolution API.
type FedExClient struct {
	url     string
	locale  string
	tokens  TokenSource
	builder *address.Builder
	client  *http.Client
	logger  *slog.Logger
	metrics *telemetry.CarrierMetrics
	newID   func() string
}

// FedExConfig contains configuration for the FedEx client.
type FedExConfig struct {
	URL    string
	Locale string // Optional: defaults to DefaultLocale
	Tokens TokenSource

	Builder    *address.Builder          // Optional: defaults to address.NewBuilder()
	HTTPClient *http.Client              // Optional: defaults to a client with a 30s timeout
	Logger     *slog.Logger              // Optional: defaults to slog.Default()
	Metrics    *telemetry.CarrierMetrics // Optional
}

// NewFedExClient creates a new FedEx address validation client.
func NewFedExClient(cfg FedExConfig) (*FedExClient, error) {
	if cfg.URL == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Tokens == nil {
		return nil, ErrMissingTokenSource
	}

	locale := cfg.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	builder := cfg.Builder
	if builder == nil {
		builder = address.NewBuilder()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FedExClient{
		url:     cfg.URL,
		locale:  locale,
		tokens:  cfg.Tokens,
		builder: builder,
		client:  client,
		logger:  logger.With("component", "fedex"),
		metrics: cfg.Metrics,
		newID:   uuid.NewString,
	}, nil
}

// Validate submits addr to the carrier and returns its response untouched.
// A non-2xx carrier status is returned in the Result, not as an error.
func (c *FedExClient) Validate(ctx context.Context, addr address.Address) (*address.Result, error) {
	const op = "fedex.validate_address"

	if err := address.Check(addr); err != nil {
		return nil, err
	}

	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(c.builder.Build(addr))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to marshal validation request")
	}

	transactionID := c.newID()
	logger := c.logger.With(
		"transaction_id", transactionID,
		"country", addr.Country,
		"postal_code", addr.PostalCode,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create validation request")
	}
	req.Header.Set("Authorization", token.AuthorizationHeader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTransactionID, transactionID)
	req.Header.Set(headerLocale, c.locale)

	telemetry.AddBreadcrumb("carrier", "address validation request", map[string]interface{}{
		"transaction_id": transactionID,
	})

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveCarrierCall(operationValidateAddress, "error", time.Since(start))
		logger.Error("address validation request failed", "error", err)

		derr := domain.Upstream(err, op, "Address validation request to carrier failed")
		telemetry.CaptureCarrierError(derr, operationValidateAddress, transactionID)
		return nil, derr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.ObserveCarrierCall(operationValidateAddress, "error", time.Since(start))
		logger.Error("failed to read address validation response", "error", err)

		derr := domain.Upstream(err, op, "Failed to read carrier response")
		telemetry.CaptureCarrierError(derr, operationValidateAddress, transactionID)
		return nil, derr
	}

	c.metrics.ObserveCarrierCall(operationValidateAddress, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("carrier returned non-success status", "status", resp.StatusCode, "body", string(body))
	} else {
		logger.Debug("address validated", "status", resp.StatusCode, "bytes", len(body))
	}

	return &address.Result{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		Body:          body,
		TransactionID: transactionID,
	}, nil
}
