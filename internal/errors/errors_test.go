package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/ratelimit"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
)

func TestToHTTP_Table(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal"},
		{"rate_limited", &service.RateLimitError{Decision: ratelimit.Decision{Limit: 30}}, http.StatusTooManyRequests, "rate_limited"},
		{"unavailable_wrapped", fmt.Errorf("op: %w: %w", service.ErrUnavailable, fmt.Errorf("upstream 500")), http.StatusServiceUnavailable, "unavailable"},
		{"no_offers", fmt.Errorf("op: %w", service.ErrNoOffers), http.StatusNotFound, "no_offers"},
		{"unknown_category", service.ErrUnknownCategory, http.StatusNotFound, "not_found"},
		{"invalid_query", fmt.Errorf("%w: page must be >= 1", query.ErrInvalidRequest), http.StatusBadRequest, "invalid_argument"},
		{"invalid_body", ErrInvalidBody, http.StatusBadRequest, "invalid_argument"},
		{"canceled", context.Canceled, StatusClientClosedRequest, "canceled"},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "deadline_exceeded"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := ToHTTP(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.code, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToHTTP_DoesNotLeakDetails(t *testing.T) {
	t.Parallel()

	_, resp := ToHTTP(fmt.Errorf("%w: dial tcp 10.0.0.5:443: secret-host", service.ErrUnavailable))
	require.NotContains(t, resp.Error.Message, "10.0.0.5")
	require.NotContains(t, resp.Error.Message, "secret-host")
}

func TestWriteError_WithRequestID(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/offers/box", nil)
	req.Header.Set("X-Request-Id", "rid-123")

	WriteError(rr, req, service.ErrNoOffers)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "no_offers", got.Error.Code)
	require.Equal(t, "rid-123", got.Error.RequestID)
}
