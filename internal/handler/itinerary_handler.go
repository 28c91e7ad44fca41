// Package handler exposes the award engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/metrics"
	"github.com/openmiles/awardengine/internal/middleware"
	"github.com/openmiles/awardengine/internal/model"
	"github.com/openmiles/awardengine/internal/service"
)

// ItineraryHandler serves POST /build-itineraries.
type ItineraryHandler struct {
	svc *service.Orchestrator
	log *zap.SugaredLogger
}

// NewItineraryHandler creates the handler.
func NewItineraryHandler(svc *service.Orchestrator, log *zap.SugaredLogger) *ItineraryHandler {
	return &ItineraryHandler{svc: svc, log: log.Named("handler")}
}

// BuildItineraries decodes the request body and query string, runs the
// pipeline and writes the ranked page.
func (h *ItineraryHandler) BuildItineraries(w http.ResponseWriter, r *http.Request) {
	var req model.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, &model.InvalidInputError{Details: model.FieldErrors{"body": "request body must be valid JSON"}})
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, err)
		return
	}

	fp, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}

	resp, err := h.svc.BuildItineraries(r.Context(), middleware.ClientIP(r), &req, fp)
	if err != nil {
		h.fail(w, err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("200").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// fail classifies the pipeline error onto an HTTP status.
func (h *ItineraryHandler) fail(w http.ResponseWriter, err error) {
	var (
		invalid *model.InvalidInputError
		limited *model.RateLimitedError
	)

	switch {
	case errors.As(err, &invalid):
		metrics.RequestsTotal.WithLabelValues("400").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_input",
			"details": invalid.Details,
		})
	case errors.As(err, &limited):
		metrics.RequestsTotal.WithLabelValues("429").Inc()
		if limited.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		}
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             "rate_limited",
			"reason":            limited.Reason,
			"retryAfterSeconds": limited.RetryAfterSeconds,
		})
	case errors.Is(err, model.ErrNoRoutes):
		metrics.RequestsTotal.WithLabelValues("404").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "no_routes",
		})
	default:
		// ErrUpstreamUnavailable, ErrCredentialExhausted and everything
		// unexpected surface the same way; details stay in the logs.
		h.log.Errorw("build failed", "err", err)
		metrics.RequestsTotal.WithLabelValues("500").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "internal_error",
		})
	}
}

// ─── Query-string parsing ───────────────────────────────────

// ParseFilterParams reads the filter/sort/paginate parameters off the
// query string, starting from the documented defaults. Unknown
// parameters are ignored; malformed values are invalid input.
func ParseFilterParams(q map[string][]string) (model.FilterParams, error) {
	fp := model.DefaultFilterParams()
	details := model.FieldErrors{}

	getStr := func(key string) (string, bool) {
		vals, ok := q[key]
		if !ok || len(vals) == 0 || vals[0] == "" {
			return "", false
		}
		return vals[0], true
	}
	getInt := func(key string) (int, bool) {
		raw, ok := getStr(key)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			details[key] = key + " must be an integer"
			return 0, false
		}
		return n, true
	}
	getInt64Ptr := func(key string) *int64 {
		raw, ok := getStr(key)
		if !ok {
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			details[key] = key + " must be an integer"
			return nil
		}
		return &n
	}
	getFloatPtr := func(key string) *float64 {
		raw, ok := getStr(key)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			details[key] = key + " must be a number"
			return nil
		}
		return &f
	}
	getCSV := func(key string) []string {
		raw, ok := getStr(key)
		if !ok {
			return nil
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	if raw, ok := getStr("stops"); ok {
		for _, p := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				details["stops"] = "stops must be a comma-separated list of integers"
				break
			}
			fp.Stops = append(fp.Stops, n)
		}
	}

	fp.IncludeAirlines = getCSV("includeAirlines")
	fp.ExcludeAirlines = getCSV("excludeAirlines")
	if n, ok := getInt("maxDuration"); ok {
		fp.MaxDuration = &n
	}

	fp.MinYPercent = getFloatPtr("minYPercent")
	fp.MinWPercent = getFloatPtr("minWPercent")
	fp.MinJPercent = getFloatPtr("minJPercent")
	fp.MinFPercent = getFloatPtr("minFPercent")

	fp.DepTimeMin = getInt64Ptr("depTimeMin")
	fp.DepTimeMax = getInt64Ptr("depTimeMax")
	fp.ArrTimeMin = getInt64Ptr("arrTimeMin")
	fp.ArrTimeMax = getInt64Ptr("arrTimeMax")

	fp.IncludeOrigin = getCSV("includeOrigin")
	fp.IncludeDestination = getCSV("includeDestination")
	fp.IncludeConnection = getCSV("includeConnection")
	fp.ExcludeOrigin = getCSV("excludeOrigin")
	fp.ExcludeDestination = getCSV("excludeDestination")
	fp.ExcludeConnection = getCSV("excludeConnection")

	if raw, ok := getStr("search"); ok {
		fp.Search = raw
	}

	if raw, ok := getStr("sortBy"); ok {
		switch raw {
		case model.SortDuration, model.SortDeparture, model.SortArrival,
			model.SortY, model.SortW, model.SortJ, model.SortF:
			fp.SortBy = raw
		default:
			details["sortBy"] = "unknown sortBy value"
		}
	}
	if raw, ok := getStr("sortOrder"); ok {
		switch raw {
		case "asc", "desc":
			fp.SortOrder = raw
		default:
			details["sortOrder"] = "sortOrder must be asc or desc"
		}
	}

	if n, ok := getInt("page"); ok {
		if n < 1 {
			details["page"] = "page must be at least 1"
		} else {
			fp.Page = n
		}
	}
	if n, ok := getInt("pageSize"); ok {
		if n < 1 {
			details["pageSize"] = "pageSize must be at least 1"
		} else {
			fp.PageSize = n
			fp.PageSizeExplicit = true
		}
	}

	if len(details) > 0 {
		return fp, &model.InvalidInputError{Details: details}
	}
	return fp, nil
}

// ─── Helpers ────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
