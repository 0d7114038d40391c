package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/crown/internal/address"
	"github.com/dukerupert/crown/internal/auth"
	"github.com/dukerupert/crown/internal/domain"
	"github.com/dukerupert/crown/internal/handler/api"
	"github.com/dukerupert/crown/internal/router"
	"github.com/dukerupert/crown/internal/shipping"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAddress() address.Address {
	return address.Address{
		StreetLines: []string{"8 John Perry Dr", ""},
		City:        "Danbury",
		State:       "CT",
		PostalCode:  "06811",
		Country:     "US",
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}

// =============================================================================
// ADDRESS VALIDATION
// =============================================================================

func TestValidateAddress_RelaysCarrierResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantType    string
	}{
		{name: "success", status: http.StatusOK, contentType: "application/json", body: `{"output":{}}`, wantType: "application/json"},
		{name: "carrier rejection", status: http.StatusBadRequest, contentType: "application/json;charset=UTF-8", body: `{"errors":[]}`, wantType: "application/json;charset=UTF-8"},
		{name: "carrier outage page", status: http.StatusServiceUnavailable, contentType: "text/html", body: `<h1>down</h1>`, wantType: "text/html"},
		{name: "missing content type", status: http.StatusOK, body: `{}`, wantType: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := address.NewMockValidator()
			mock.ValidateFunc = func(ctx context.Context, addr address.Address) (*address.Result, error) {
				return &address.Result{
					StatusCode:    tt.status,
					ContentType:   tt.contentType,
					Body:          []byte(tt.body),
					TransactionID: "txn-1",
				}, nil
			}
			h := api.NewAddressHandler(mock, testAddress(), discardLogger())

			rec := httptest.NewRecorder()
			h.ValidateAddress(rec, httptest.NewRequest(http.MethodGet, "/api_v1/validate_address", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "txn-1", rec.Header().Get(api.TransactionIDHeader))
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestValidateAddress_UsesConfiguredAddress(t *testing.T) {
	mock := address.NewMockValidator()
	configured := testAddress()
	configured.City = "Somewhere"
	h := api.NewAddressHandler(mock, configured, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api_v1/validate_address?city=Elsewhere", nil)
	h.ValidateAddress(httptest.NewRecorder(), req)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "Somewhere", mock.Calls[0].City)
}

func TestValidateAddress_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "auth failure", err: domain.Unauthorized("fedex.exchange", "Carrier rejected client credentials"), wantStatus: http.StatusUnauthorized, wantCode: domain.EUNAUTHORIZED},
		{name: "invalid address", err: domain.Invalid("address.check", "first street line is required"), wantStatus: http.StatusBadRequest, wantCode: domain.EINVALID},
		{name: "carrier unreachable", err: domain.Upstream(io.ErrUnexpectedEOF, "fedex.validate_address", "Address validation request to carrier failed"), wantStatus: http.StatusBadGateway, wantCode: domain.EUPSTREAM},
		{name: "carrier timeout", err: domain.Upstream(context.DeadlineExceeded, "fedex.validate_address", "Address validation request to carrier failed"), wantStatus: http.StatusGatewayTimeout, wantCode: domain.ETIMEOUT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := address.NewMockValidator()
			mock.ValidateFunc = func(ctx context.Context, addr address.Address) (*address.Result, error) {
				return nil, tt.err
			}
			h := api.NewAddressHandler(mock, testAddress(), discardLogger())

			rec := httptest.NewRecorder()
			h.ValidateAddress(rec, httptest.NewRequest(http.MethodGet, "/api_v1/validate_address", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			code, _ := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestValidateAddress_TokenEndpointDown(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer tokenServer.Close()

	carrierCalled := false
	carrier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		carrierCalled = true
	}))
	defer carrier.Close()

	issuer := auth.NewIssuer(auth.IssuerConfig{
		TokenURL:     tokenServer.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Logger:       discardLogger(),
	}, auth.NewCache(nil))
	client, err := shipping.NewFedExClient(shipping.FedExConfig{
		URL:    carrier.URL,
		Tokens: issuer,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	h := api.NewAddressHandler(client, testAddress(), discardLogger())
	rec := httptest.NewRecorder()
	h.ValidateAddress(rec, httptest.NewRequest(http.MethodGet, "/api_v1/validate_address", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, domain.EUNAUTHORIZED, code)
	assert.False(t, carrierCalled)
}

// =============================================================================
// ENDPOINTS
// =============================================================================

func TestListEndpoints(t *testing.T) {
	r := router.New()
	h := api.NewEndpointsHandler(r.Routes)
	r.Get("/{$}", api.Root)
	r.Get("/api_v1/list_endpoints", h.ListEndpoints)
	r.Get("/hello/{name}", api.Hello)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api_v1/list_endpoints", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"method":"GET","path":"/"},
		{"method":"GET","path":"/api_v1/list_endpoints"},
		{"method":"GET","path":"/hello/{name}"}
	]`, rec.Body.String())
}

func TestListEndpoints_Empty(t *testing.T) {
	h := api.NewEndpointsHandler(func() []router.Route { return nil })

	rec := httptest.NewRecorder()
	h.ListEndpoints(rec, httptest.NewRequest(http.MethodGet, "/api_v1/list_endpoints", nil))

	assert.JSONEq(t, `[]`, rec.Body.String())
}

// =============================================================================
// GREETINGS
// =============================================================================

func TestGreetings(t *testing.T) {
	r := router.New()
	r.Get("/{$}", api.Root)
	r.Get("/hello/{name}", api.Hello)

	tests := []struct {
		path string
		want string
	}{
		{"/", `{"message":"Hello World"}`},
		{"/hello/Ada", `{"message":"Hello Ada"}`},
		{"/hello/J%C3%BCrgen", `{"message":"Hello Jürgen"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	h := api.NewHealthHandler(func() bool { return false })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	ready := false
	h := api.NewHealthHandler(func() bool { return ready })

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, domain.EUNAVAILABLE, code)

	ready = true
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}
