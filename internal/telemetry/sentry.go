package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// flushTimeout bounds how long buffered events may delay shutdown.
const flushTimeout = 2 * time.Second

// SentryConfig selects where carrier and server failures are reported.
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string // dev or prod
	Release     string
	SampleRate  float64 // 0 means report everything
}

// reporting is true once a client has been initialized with a DSN.
var reporting atomic.Bool

// InitSentry starts error reporting. With reporting disabled or no DSN every
// capture helper in this package is a no-op. The returned func flushes
// buffered events and belongs in a defer in main.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	reporting.Store(false)
	noop := func() {}

	if !cfg.Enabled {
		logger.Info("Sentry disabled (SENTRY_ENABLED=false)")
		return noop, nil
	}
	if cfg.DSN == "" {
		logger.Warn("SENTRY_ENABLED is set without SENTRY_DSN; carrier failures will only be logged")
		return noop, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  sampleRate,
		BeforeSend:  scrubEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	reporting.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() { sentry.Flush(flushTimeout) }, nil
}

// scrubEvent drops credentials from captured requests. Inbound requests may
// carry a bearer token of their own.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	for _, h := range []string{"Authorization", "Cookie", "Proxy-Authorization"} {
		delete(event.Request.Headers, h)
	}
	return event
}

// IsEnabled reports whether events are being sent.
func IsEnabled() bool {
	return reporting.Load()
}

// CaptureError reports a server-side failure. extra is attached to the event
// as-is, typically the request id and path.
func CaptureError(err error, extra ...map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for _, m := range extra {
			for key, value := range m {
				scope.SetExtra(key, value)
			}
		}
		sentry.CaptureException(err)
	})
}

// CaptureCarrierError reports a failed carrier call tagged with the operation
// and the x-customer-transaction-id we sent, so FedEx support can find it.
func CaptureCarrierError(err error, operation, transactionID string) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("carrier_operation", operation)
		if transactionID != "" {
			scope.SetTag("transaction_id", transactionID)
		}
		sentry.CaptureException(err)
	})
}

// AddBreadcrumb records a step leading up to a possible carrier failure.
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !IsEnabled() {
		return
	}

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	})
}

// SentryMiddleware gives each request its own hub so breadcrumbs from one
// validation call do not leak into another, and reports panics.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.Scope().SetRequest(r)
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if rec := recover(); rec != nil {
					hub.RecoverWithContext(ctx, rec)
					hub.Flush(flushTimeout)
					panic(rec)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
