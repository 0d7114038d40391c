package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CarrierMetrics holds Prometheus metrics for calls made to the carrier.
// A nil *CarrierMetrics is valid and records nothing.
type CarrierMetrics struct {
	// Token lifecycle
	TokenExchanges *prometheus.CounterVec
	TokenCacheHits prometheus.Counter
	TokenExpiry    prometheus.Gauge

	// Outbound API performance
	CarrierAPILatency *prometheus.HistogramVec
	CarrierResponses  *prometheus.CounterVec
}

// NewCarrierMetrics creates carrier metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCarrierMetrics(namespace string, reg prometheus.Registerer) *CarrierMetrics {
	if namespace == "" {
		namespace = "crown"
	}

	subsystem := "carrier"
	factory := promauto.With(reg)

	return &CarrierMetrics{
		TokenExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "token_exchanges_total",
				Help:      "OAuth client-credentials exchanges with the carrier",
			},
			[]string{"result"}, // result: success, rejected, invalid_response, transport_error
		),
		TokenCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "token_cache_hits_total",
				Help:      "Validated calls served with the cached bearer token",
			},
		),
		TokenExpiry: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "token_expiry_timestamp_seconds",
				Help:      "Unix time at which the cached bearer token is considered expired",
			},
		),
		CarrierAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "api_duration_seconds",
				Help:      "Carrier API call duration (helps differentiate app slowness from carrier issues)",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"}, // operation: token, validate_address
		),
		CarrierResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "responses_total",
				Help:      "Carrier responses by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
	}
}

// ObserveTokenExchange records one exchange attempt.
func (m *CarrierMetrics) ObserveTokenExchange(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.TokenExchanges.WithLabelValues(result).Inc()
	m.CarrierAPILatency.WithLabelValues("token").Observe(took.Seconds())
}

// ObserveTokenCacheHit records a call served without an exchange.
func (m *CarrierMetrics) ObserveTokenCacheHit() {
	if m == nil {
		return
	}
	m.TokenCacheHits.Inc()
}

// SetTokenExpiry publishes the expiry instant of the cached token.
func (m *CarrierMetrics) SetTokenExpiry(at time.Time) {
	if m == nil {
		return
	}
	m.TokenExpiry.Set(float64(at.Unix()))
}

// ObserveCarrierCall records an outbound API call. status is the HTTP status
// text code, or "error" when no response arrived.
func (m *CarrierMetrics) ObserveCarrierCall(operation, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.CarrierAPILatency.WithLabelValues(operation).Observe(took.Seconds())
	m.CarrierResponses.WithLabelValues(operation, status).Inc()
}
