package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/crown/internal"
	"github.com/dukerupert/crown/internal/address"
	"github.com/dukerupert/crown/internal/auth"
	"github.com/dukerupert/crown/internal/handler/api"
	"github.com/dukerupert/crown/internal/middleware"
	"github.com/dukerupert/crown/internal/router"
	"github.com/dukerupert/crown/internal/routes"
	"github.com/dukerupert/crown/internal/shipping"
	"github.com/dukerupert/crown/internal/telemetry"
	"github.com/dukerupert/crown/internal/worker"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 15 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	out, closeLog, err := internal.OpenLogOutput(cfg.App.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := internal.NewLogger(out, cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(logger)

	// Initialize error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	// Initialize Prometheus metrics
	carrierMetrics := telemetry.NewCarrierMetrics("crown", prometheus.DefaultRegisterer)
	httpMetrics := middleware.NewMetrics("crown", prometheus.DefaultRegisterer)

	// Initialize carrier token issuer
	logger.Info("Initializing carrier token issuer...", "token_url", cfg.FedEx.AuthTokenURL)
	carrierHTTP := &http.Client{Timeout: cfg.FedEx.RequestTimeout}
	issuer := auth.NewIssuer(auth.IssuerConfig{
		TokenURL:     cfg.FedEx.AuthTokenURL,
		ClientID:     cfg.FedEx.ClientID,
		ClientSecret: cfg.FedEx.ClientSecret,
		AuthPayload:  cfg.FedEx.AuthPayload,
		ExpireEarly:  cfg.FedEx.ExpireEarly,
		HTTPClient:   carrierHTTP,
		Logger:       logger,
		Metrics:      carrierMetrics,
	}, auth.NewCache(nil))

	// Warm the token cache. Failure is not fatal: requests retry the exchange.
	warmCtx, cancelWarm := context.WithTimeout(ctx, cfg.FedEx.RequestTimeout)
	if _, err := issuer.EnsureValid(warmCtx); err != nil {
		logger.Warn("Carrier token warmup failed; continuing without a cached token", "error", err)
	} else {
		logger.Info("Carrier token cached")
	}
	cancelWarm()

	if cfg.FedEx.RefreshInterval > 0 {
		refresher := worker.NewRefresher(issuer, worker.Config{
			PollInterval: cfg.FedEx.RefreshInterval,
			Timeout:      cfg.FedEx.RequestTimeout,
		}, logger)
		go refresher.Start(ctx)
	}

	// Initialize carrier client
	logger.Info("Initializing carrier client...", "url", cfg.FedEx.AddressValidationURL)
	carrier, err := shipping.NewFedExClient(shipping.FedExConfig{
		URL:        cfg.FedEx.AddressValidationURL,
		Locale:     cfg.FedEx.Locale,
		Tokens:     issuer,
		Builder:    address.NewBuilder(),
		HTTPClient: carrierHTTP,
		Logger:     logger,
		Metrics:    carrierMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize carrier client: %w", err)
	}
	logger.Warn("Address validation uses the configured test address, not caller input",
		"city", cfg.FedEx.TestAddress.City,
		"postal_code", cfg.FedEx.TestAddress.PostalCode,
	)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	// A validation call may need a token exchange and a carrier call
	requestBudget := 2*cfg.FedEx.RequestTimeout + middleware.ShortTimeout

	r := router.New(
		middleware.SecurityHeaders(middleware.APISecurityHeadersConfig(cfg.App.Env)),
		middleware.RequestID,
		middleware.WithClientIP(),
		httpMetrics.Middleware,
		middleware.Timeout(requestBudget),
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	apiDeps := routes.APIDeps{
		AddressHandler:   api.NewAddressHandler(carrier, cfg.FedEx.TestAddress, logger),
		EndpointsHandler: api.NewEndpointsHandler(r.Routes),
	}
	if cfg.App.RateLimitRPS > 0 {
		limitCfg := middleware.CarrierRateLimiterConfig()
		limitCfg.RequestsPerSecond = cfg.App.RateLimitRPS
		limitCfg.BurstSize = cfg.App.RateLimitBurst
		limiter := middleware.NewRateLimiter(limitCfg)
		defer limiter.Stop()
		apiDeps.CarrierLimit = limiter.Middleware
	}

	routes.RegisterGreetingRoutes(r)
	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  api.NewHealthHandler(issuer.Ready),
		MetricsHandler: httpMetrics.Handler(),
	})

	var h http.Handler = r
	if len(cfg.App.CORSOrigins) > 0 {
		h = router.CORS(cfg.App.CORSOrigins)(r)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.App.Env, "version", internal.AppVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
