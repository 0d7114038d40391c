package api

import (
	"net/http"

	"github.com/dukerupert/crown/internal/domain"
	"github.com/dukerupert/crown/internal/handler"
)

// HealthHandler reports liveness and readiness.
type HealthHandler struct {
	ready func() bool
}

// NewHealthHandler creates a health handler. ready reports whether the
// service can serve carrier requests without a token exchange first.
func NewHealthHandler(ready func() bool) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Health handles GET /health. It answers as long as the process serves HTTP.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Ready handles GET /ready
//
// Response codes:
// - 200 OK: a valid carrier token is cached
// - 503 Service Unavailable: no valid token yet (warmup failed or token expired)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAVAILABLE, "health.ready", "Carrier token not available"))
		return
	}
	handler.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
