package routes

import (
	"net/http"

	"github.com/dukerupert/crown/internal/handler/api"
	"github.com/dukerupert/crown/internal/router"
)

// APIDeps contains dependencies for the carrier-backed API routes
type APIDeps struct {
	AddressHandler   *api.AddressHandler
	EndpointsHandler *api.EndpointsHandler

	// CarrierLimit guards routes that spend carrier quota. Optional.
	CarrierLimit router.Middleware
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	HealthHandler  *api.HealthHandler
	MetricsHandler http.Handler
}
