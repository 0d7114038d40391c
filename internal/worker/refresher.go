// Package worker runs background maintenance loops.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/crown/internal/auth"
)

// TokenSource is the part of the token issuer the refresher drives.
type TokenSource interface {
	EnsureValid(ctx context.Context) (*auth.BearerToken, error)
	Ready() bool
}

// Config holds refresher configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// PollInterval is how often the cached token is checked
	PollInterval time.Duration

	// Timeout bounds a single refresh attempt
	Timeout time.Duration
}

// Refresher keeps the carrier token cache warm so /ready reflects reality and
// requests rarely wait on an exchange.
type Refresher struct {
	config Config
	tokens TokenSource
	logger *slog.Logger
}

// NewRefresher creates a new token refresher
func NewRefresher(tokens TokenSource, config Config, logger *slog.Logger) *Refresher {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("refresher-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Minute
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Refresher{
		config: config,
		tokens: tokens,
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// Start checks the token every PollInterval until ctx is cancelled. It always
// returns ctx.Err().
func (r *Refresher) Start(ctx context.Context) error {
	r.logger.Info("token refresher starting", "poll_interval", r.config.PollInterval)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("token refresher shutting down")
			return ctx.Err()

		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh exchanges for a new token only when the cached one is no longer valid
func (r *Refresher) refresh(ctx context.Context) {
	if r.tokens.Ready() {
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	tok, err := r.tokens.EnsureValid(refreshCtx)
	if err != nil {
		r.logger.Error("background token refresh failed", "error", err)
		return
	}
	r.logger.Debug("background token refresh succeeded", "expires_at", tok.ExpiresAt)
}
