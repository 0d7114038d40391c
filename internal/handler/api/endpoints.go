package api

import (
	"net/http"

	"github.com/dukerupert/crown/internal/handler"
	"github.com/dukerupert/crown/internal/router"
)

// EndpointsHandler lists the routes the server exposes.
type EndpointsHandler struct {
	routes func() []router.Route
}

// NewEndpointsHandler creates a handler reporting the result of routes,
// usually (*router.Router).Routes. It is called per request, so routes added
// after construction are included.
func NewEndpointsHandler(routes func() []router.Route) *EndpointsHandler {
	return &EndpointsHandler{routes: routes}
}

// ListEndpoints handles GET /api_v1/list_endpoints
func (h *EndpointsHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	routes := h.routes()
	if routes == nil {
		routes = []router.Route{}
	}
	handler.JSON(w, http.StatusOK, routes)
}
