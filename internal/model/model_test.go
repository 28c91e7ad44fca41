package model

import (
	"errors"
	"reflect"
	"testing"
)

func validRequest() *BuildRequest {
	return &BuildRequest{
		Origin:      "NRT",
		Destination: "JFK",
		MaxStop:     2,
		StartDate:   "2025-03-01",
		EndDate:     "2025-03-03",
	}
}

func TestBuildRequest_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BuildRequest)
		field  string
	}{
		{"missing origin", func(r *BuildRequest) { r.Origin = " " }, "origin"},
		{"missing destination", func(r *BuildRequest) { r.Destination = "" }, "destination"},
		{"negative maxStop", func(r *BuildRequest) { r.MaxStop = -1 }, "maxStop"},
		{"maxStop over ceiling", func(r *BuildRequest) { r.MaxStop = MaxStopLimit + 1 }, "maxStop"},
		{"bad startDate", func(r *BuildRequest) { r.StartDate = "03/01/2025" }, "startDate"},
		{"bad endDate", func(r *BuildRequest) { r.EndDate = "soon" }, "endDate"},
		{"inverted dates", func(r *BuildRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }, "endDate"},
		{"reliability out of range", func(r *BuildRequest) { p := 101; r.MinReliabilityPercent = &p }, "minReliabilityPercent"},
		{"negative seats", func(r *BuildRequest) { r.Seats = -1 }, "seats"},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(req)

		err := req.Validate()
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: err = %v, want InvalidInputError", tc.name, err)
			continue
		}
		if _, ok := invalid.Details[tc.field]; !ok {
			t.Errorf("%s: details = %v, want entry for %q", tc.name, invalid.Details, tc.field)
		}
	}

	if err := validRequest().Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestBuildRequest_CodeSplitting(t *testing.T) {
	r := validRequest()
	r.Origin = "nrt/ hnd /"
	if got := r.OriginCodes(); !reflect.DeepEqual(got, []string{"NRT", "HND"}) {
		t.Errorf("OriginCodes = %v, want [NRT HND]", got)
	}
	if got := r.DestinationCodes(); !reflect.DeepEqual(got, []string{"JFK"}) {
		t.Errorf("DestinationCodes = %v, want [JFK]", got)
	}
}

func TestBuildRequest_ReliabilityThreshold(t *testing.T) {
	r := validRequest()
	if got := r.ReliabilityThreshold(); got != DefaultReliabilityPercent {
		t.Errorf("default threshold = %d, want %d", got, DefaultReliabilityPercent)
	}
	p := 60
	r.MinReliabilityPercent = &p
	if got := r.ReliabilityThreshold(); got != 60 {
		t.Errorf("threshold = %d, want 60", got)
	}
}

func TestBuildRequest_DateSpanDays(t *testing.T) {
	r := validRequest()
	if got := r.DateSpanDays(); got != 3 {
		t.Errorf("DateSpanDays = %d, want 3 (inclusive)", got)
	}
	r.EndDate = r.StartDate
	if got := r.DateSpanDays(); got != 1 {
		t.Errorf("DateSpanDays(same day) = %d, want 1", got)
	}
}

func TestFlight_Carrier(t *testing.T) {
	cases := []struct{ number, want string }{
		{"NH105", "NH"},
		{"aa9", "AA"},
		{"X", "X"},
	}
	for _, tc := range cases {
		f := Flight{FlightNumber: tc.number}
		if got := f.Carrier(); got != tc.want {
			t.Errorf("Carrier(%q) = %q, want %q", tc.number, got, tc.want)
		}
	}
}

func TestRouteStructure_AllianceWhitelist(t *testing.T) {
	r := RouteStructure{
		Waypoints: []string{"NRT", "LAX", "ORD", "JFK"},
		All1:      []string{"SA"},
		All2:      []string{"OW"},
		All3:      []string{"ST"},
	}
	total := len(r.Waypoints) - 1

	if got := r.AllianceWhitelist(0, total); !reflect.DeepEqual(got, []string{"SA"}) {
		t.Errorf("first segment = %v, want [SA]", got)
	}
	if got := r.AllianceWhitelist(1, total); !reflect.DeepEqual(got, []string{"OW"}) {
		t.Errorf("middle segment = %v, want [OW]", got)
	}
	if got := r.AllianceWhitelist(2, total); !reflect.DeepEqual(got, []string{"ST"}) {
		t.Errorf("last segment = %v, want [ST]", got)
	}

	// Single-segment route: the first-segment list wins.
	if got := (&RouteStructure{All1: []string{"SA"}, All3: []string{"ST"}}).AllianceWhitelist(0, 1); !reflect.DeepEqual(got, []string{"SA"}) {
		t.Errorf("single segment = %v, want [SA]", got)
	}
}

func TestReliabilityTable_RuleFallback(t *testing.T) {
	table := ReliabilityTable{"AA": {Carrier: "AA", MinCount: 5, ExemptedCabins: "JF"}}

	if got := table.Rule("AA").MinCount; got != 5 {
		t.Errorf("known carrier MinCount = %d, want 5", got)
	}
	fallback := table.Rule("ZZ")
	if fallback.MinCount != 1 || fallback.ExemptedCabins != "" {
		t.Errorf("fallback rule = %+v, want MinCount 1, no exemptions", fallback)
	}

	rule := table.Rule("AA")
	if !rule.Exempts(CabinJ) || rule.Exempts(CabinY) {
		t.Errorf("Exempts: J = %v, Y = %v; want true, false", rule.Exempts(CabinJ), rule.Exempts(CabinY))
	}
}

func TestFilterParams_IsPagination(t *testing.T) {
	fp := DefaultFilterParams()
	if fp.IsPagination() {
		t.Error("defaults count as pagination")
	}
	fp.Page = 2
	if !fp.IsPagination() {
		t.Error("page 2 not flagged as pagination")
	}
	fp = DefaultFilterParams()
	fp.PageSizeExplicit = true
	if !fp.IsPagination() {
		t.Error("explicit pageSize not flagged as pagination")
	}
}
