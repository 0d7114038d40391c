// Package api contains the JSON API handlers.
package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/crown/internal/address"
	"github.com/dukerupert/crown/internal/handler"
	"github.com/dukerupert/crown/internal/middleware"
)

// TransactionIDHeader echoes the id sent to the carrier so a caller can quote
// it when raising a problem with the carrier.
const TransactionIDHeader = "X-Carrier-Transaction-ID"

// AddressHandler proxies address validation to the carrier.
type AddressHandler struct {
	validator   address.Validator
	testAddress address.Address
	logger      *slog.Logger
}

// NewAddressHandler creates a new address validation handler. Every request
// validates testAddress; nothing is read from the caller.
func NewAddressHandler(
	validator address.Validator,
	testAddress address.Address,
	logger *slog.Logger,
) *AddressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressHandler{
		validator:   validator,
		testAddress: testAddress,
		logger:      logger,
	}
}

// ValidateAddress handles GET /api_v1/validate_address
//
// Response codes:
// - carrier status: the carrier answered; body and content type are relayed as-is
// - 401 Unauthorized: no carrier token could be obtained
// - 400 Bad Request: the configured address is not valid
// - 502 Bad Gateway: the carrier could not be reached
// - 504 Gateway Timeout: the carrier did not answer in time
func (h *AddressHandler) ValidateAddress(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	res, err := h.validator.Validate(r.Context(), h.testAddress)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if res.TransactionID != "" {
		w.Header().Set(TransactionIDHeader, res.TransactionID)
	}
	w.WriteHeader(res.StatusCode)

	if _, err := w.Write(res.Body); err != nil {
		logger.Warn("failed to relay carrier response", "error", err)
	}
}
