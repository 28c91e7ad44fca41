package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Request ────────────────────────────────────────────────

const (
	// DefaultReliabilityPercent applies when the caller omits
	// minReliabilityPercent.
	DefaultReliabilityPercent = 85

	// MaxStopLimit is the hard ceiling on maxStop regardless of tier.
	MaxStopLimit = 4

	dateLayout = "2006-01-02"
)

// BuildRequest is the validated body of POST /build-itineraries.
// Origin and Destination accept "/"-separated airport or city codes.
type BuildRequest struct {
	Origin                string  `json:"origin"`
	Destination           string  `json:"destination"`
	MaxStop               int     `json:"maxStop"`
	StartDate             string  `json:"startDate"`
	EndDate               string  `json:"endDate"`
	APIKey                *string `json:"apiKey"`
	Cabin                 string  `json:"cabin,omitempty"`
	Carriers              string  `json:"carriers,omitempty"`
	MinReliabilityPercent *int    `json:"minReliabilityPercent,omitempty"`
	Seats                 int     `json:"seats,omitempty"`
	United                bool    `json:"united,omitempty"`
	BinBin                bool    `json:"binbin,omitempty"`
	Region                bool    `json:"region,omitempty"`
}

// OriginCodes returns the slash-separated origin codes, upper-cased.
func (r *BuildRequest) OriginCodes() []string { return splitCodes(r.Origin) }

// DestinationCodes returns the slash-separated destination codes, upper-cased.
func (r *BuildRequest) DestinationCodes() []string { return splitCodes(r.Destination) }

// ReliabilityThreshold resolves minReliabilityPercent to its default.
func (r *BuildRequest) ReliabilityThreshold() int {
	if r.MinReliabilityPercent != nil {
		return *r.MinReliabilityPercent
	}
	return DefaultReliabilityPercent
}

// HasAPIKey reports whether a non-empty API key was supplied.
func (r *BuildRequest) HasAPIKey() bool {
	return r.APIKey != nil && *r.APIKey != ""
}

// DateSpanDays returns the inclusive number of days between start and
// end date, or 0 when either date is unparseable (validation catches
// that separately).
func (r *BuildRequest) DateSpanDays() int {
	start, err1 := time.Parse(dateLayout, r.StartDate)
	end, err2 := time.Parse(dateLayout, r.EndDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Validate checks field-level constraints and returns an
// *InvalidInputError carrying one message per offending field.
func (r *BuildRequest) Validate() error {
	details := FieldErrors{}

	if strings.TrimSpace(r.Origin) == "" {
		details["origin"] = "origin is required"
	}
	if strings.TrimSpace(r.Destination) == "" {
		details["destination"] = "destination is required"
	}
	if r.MaxStop < 0 || r.MaxStop > MaxStopLimit {
		details["maxStop"] = fmt.Sprintf("maxStop must be between 0 and %d", MaxStopLimit)
	}

	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		details["startDate"] = "startDate must be formatted YYYY-MM-DD"
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		details["endDate"] = "endDate must be formatted YYYY-MM-DD"
	}
	if details["startDate"] == "" && details["endDate"] == "" && end.Before(start) {
		details["endDate"] = "endDate must not be before startDate"
	}

	if r.MinReliabilityPercent != nil {
		if p := *r.MinReliabilityPercent; p < 0 || p > 100 {
			details["minReliabilityPercent"] = "minReliabilityPercent must be between 0 and 100"
		}
	}
	if r.Seats < 0 {
		details["seats"] = "seats must be at least 1"
	}

	if len(details) > 0 {
		return &InvalidInputError{Details: details}
	}
	return nil
}

// ─── Filter / sort / paginate query parameters ──────────────

// Sort keys accepted by the ranker.
const (
	SortDuration  = "duration"
	SortDeparture = "departure"
	SortArrival   = "arrival"
	SortY         = "y"
	SortW         = "w"
	SortJ         = "j"
	SortF         = "f"
)

// FilterParams is the parsed query string of /build-itineraries. Nil
// pointers and empty slices mean "no constraint".
type FilterParams struct {
	Stops           []int    `json:"stops,omitempty"`
	IncludeAirlines []string `json:"includeAirlines,omitempty"`
	ExcludeAirlines []string `json:"excludeAirlines,omitempty"`
	MaxDuration     *int     `json:"maxDuration,omitempty"`

	MinYPercent *float64 `json:"minYPercent,omitempty"`
	MinWPercent *float64 `json:"minWPercent,omitempty"`
	MinJPercent *float64 `json:"minJPercent,omitempty"`
	MinFPercent *float64 `json:"minFPercent,omitempty"`

	DepTimeMin *int64 `json:"depTimeMin,omitempty"`
	DepTimeMax *int64 `json:"depTimeMax,omitempty"`
	ArrTimeMin *int64 `json:"arrTimeMin,omitempty"`
	ArrTimeMax *int64 `json:"arrTimeMax,omitempty"`

	IncludeOrigin      []string `json:"includeOrigin,omitempty"`
	IncludeDestination []string `json:"includeDestination,omitempty"`
	IncludeConnection  []string `json:"includeConnection,omitempty"`
	ExcludeOrigin      []string `json:"excludeOrigin,omitempty"`
	ExcludeDestination []string `json:"excludeDestination,omitempty"`
	ExcludeConnection  []string `json:"excludeConnection,omitempty"`

	Search string `json:"search,omitempty"`

	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`

	Page             int  `json:"page"`
	PageSize         int  `json:"pageSize"`
	PageSizeExplicit bool `json:"-"`
}

// DefaultFilterParams returns the zero filter with default sort and
// pagination applied.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		SortBy:    SortDuration,
		SortOrder: "asc",
		Page:      1,
		PageSize:  10,
	}
}

// IsPagination reports whether this request counts against the
// pagination rate-limit policy: page beyond the first, or an explicit
// pageSize.
func (p *FilterParams) IsPagination() bool {
	return p.Page > 1 || p.PageSizeExplicit
}

// ─── Response ───────────────────────────────────────────────

// FilterMetadata carries facet ranges for client-side filter UIs.
type FilterMetadata struct {
	Stops       []int    `json:"stops"`
	Airlines    []string `json:"airlines"`
	Airports    []string `json:"airports"`
	MinDuration int      `json:"minDuration"`
	MaxDuration int      `json:"maxDuration"`
	MinDepTime  int64    `json:"minDepTime"`
	MaxDepTime  int64    `json:"maxDepTime"`
	MinArrTime  int64    `json:"minArrTime"`
	MaxArrTime  int64    `json:"maxArrTime"`
}

// BuildResponse is the body returned to the caller, and also the exact
// object stored under the filtered cache key.
type BuildResponse struct {
	Itineraries []OptimizedItinerary     `json:"itineraries"`
	Flights     map[string]*Flight       `json:"flights"`
	Pricing     map[string]*PricingEntry `json:"pricing,omitempty"`

	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`

	MinRateLimitRemaining     int `json:"minRateLimitRemaining"`
	MinRateLimitReset         int `json:"minRateLimitReset"`
	TotalUpstreamHTTPRequests int `json:"totalUpstreamHttpRequests"`

	FilterMetadata FilterMetadata `json:"filterMetadata"`
}

// ─── Helpers ────────────────────────────────────────────────

func splitCodes(s string) []string {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
