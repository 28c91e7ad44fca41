package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

func TestFail_StatusMapping(t *testing.T) {
	h := NewItineraryHandler(nil, zap.NewNop().Sugar())

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			"invalid input",
			&model.InvalidInputError{Details: model.FieldErrors{"origin": "origin is required"}},
			http.StatusBadRequest, "invalid_input",
		},
		{
			"rate limited",
			&model.RateLimitedError{RetryAfterSeconds: 90, Reason: "unique search limit exceeded"},
			http.StatusTooManyRequests, "rate_limited",
		},
		{
			"no routes",
			model.ErrNoRoutes,
			http.StatusNotFound, "no_routes",
		},
		{
			"wrapped no routes",
			fmt.Errorf("pipeline: %w", model.ErrNoRoutes),
			http.StatusNotFound, "no_routes",
		},
		{
			"upstream down",
			model.ErrUpstreamUnavailable,
			http.StatusInternalServerError, "internal_error",
		},
		{
			"credentials exhausted",
			model.ErrCredentialExhausted,
			http.StatusInternalServerError, "internal_error",
		},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.fail(rec, tc.err)

		assert.Equal(t, tc.wantStatus, rec.Code, tc.name)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tc.name)
		assert.Equal(t, tc.wantError, body["error"], tc.name)
	}
}

func TestFail_RateLimitDetails(t *testing.T) {
	h := NewItineraryHandler(nil, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()

	h.fail(rec, &model.RateLimitedError{RetryAfterSeconds: 3, Reason: "pagination limit exceeded"})

	assert.Equal(t, "3", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["retryAfterSeconds"])
	assert.Contains(t, body["reason"], "pagination")
}

func TestFail_InvalidInputCarriesDetails(t *testing.T) {
	h := NewItineraryHandler(nil, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()

	h.fail(rec, &model.InvalidInputError{Details: model.FieldErrors{
		"startDate": "startDate must be formatted YYYY-MM-DD",
	}})

	var body struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Details["startDate"], "YYYY-MM-DD")
}
