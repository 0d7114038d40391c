package routes

import (
	"github.com/dukerupert/crown/internal/handler"
	"github.com/dukerupert/crown/internal/handler/api"
	"github.com/dukerupert/crown/internal/router"
)

// RegisterAPIRoutes registers the versioned API routes
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	var carrier []router.Middleware
	if deps.CarrierLimit != nil {
		carrier = append(carrier, deps.CarrierLimit)
	}

	r.Get("/api_v1/validate_address", deps.AddressHandler.ValidateAddress, carrier...)
	r.Get("/api_v1/list_endpoints", deps.EndpointsHandler.ListEndpoints)
}

// RegisterGreetingRoutes registers the root and greeting routes along with
// the JSON fallback for unmatched paths
func RegisterGreetingRoutes(r *router.Router) {
	r.Get("/{$}", api.Root)
	r.Get("/hello/{name}", api.Hello)
	r.NotFound(handler.NotFound)
}

// RegisterOpsRoutes registers health, readiness and metrics routes
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.HealthHandler.Health)
	r.Get("/ready", deps.HealthHandler.Ready)
	if deps.MetricsHandler != nil {
		r.Handle("GET", "/metrics", deps.MetricsHandler)
	}
}
