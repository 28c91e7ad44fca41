package fetch

import (
	"reflect"
	"testing"
)

func TestParseRouteID_RoundTrip(t *testing.T) {
	g := ParseRouteID("NRT/HND-LAX/SFO")
	if !reflect.DeepEqual(g.Origins, []string{"NRT", "HND"}) {
		t.Errorf("Origins = %v", g.Origins)
	}
	if !reflect.DeepEqual(g.Destinations, []string{"LAX", "SFO"}) {
		t.Errorf("Destinations = %v", g.Destinations)
	}
	// Rendering sorts codes.
	if got := g.RouteID(); got != "HND/NRT-LAX/SFO" {
		t.Errorf("RouteID = %q, want HND/NRT-LAX/SFO", got)
	}
}

func TestRouteGroup_Covers(t *testing.T) {
	g := ParseRouteID("NRT/HND-LAX")
	if !g.Covers("HND", "LAX") {
		t.Error("Covers(HND, LAX) = false, want true")
	}
	if g.Covers("NRT", "SFO") {
		t.Error("Covers(NRT, SFO) = true, want false")
	}
}

// coverageCheck asserts the consolidation invariant: every original
// (origin, destination) pair is covered by some output group sharing the
// original query's filters.
func coverageCheck(t *testing.T, in, out []AvailabilityQuery) {
	t.Helper()
	for _, q := range in {
		orig := ParseRouteID(q.RouteID)
		for _, o := range orig.Origins {
			for _, d := range orig.Destinations {
				covered := false
				for _, oq := range out {
					same := oq
					same.RouteID = ""
					qq := q
					qq.RouteID = ""
					if same == qq && ParseRouteID(oq.RouteID).Covers(o, d) {
						covered = true
						break
					}
				}
				if !covered {
					t.Errorf("pair %s-%s from %q not covered", o, d, q.RouteID)
				}
			}
		}
	}
}

func TestConsolidateQueries_MergesUnderTarget(t *testing.T) {
	in := []AvailabilityQuery{
		query("NRT-LAX"),
		query("NRT-SFO"),
		query("HND-LAX"),
		query("HND-SFO"),
	}

	out := ConsolidateQueries(in, 100000)
	if len(out) >= len(in) {
		t.Errorf("consolidation produced %d queries from %d, want fewer", len(out), len(in))
	}
	coverageCheck(t, in, out)
}

func TestConsolidateQueries_RespectsFilterPartition(t *testing.T) {
	a := query("NRT-LAX")
	b := query("HND-LAX")
	b.Cabin = "J" // different filter bucket

	out := ConsolidateQueries([]AvailabilityQuery{a, b}, 100000)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (filters must not merge)", len(out))
	}
	coverageCheck(t, []AvailabilityQuery{a, b}, out)
}

func TestConsolidateQueries_TightTargetSplitsBins(t *testing.T) {
	in := []AvailabilityQuery{
		query("NRT-LAX"),
		query("HND-SFO"),
	}

	// One pair over three days costs 24; a target of 30 cannot hold the
	// merged 2x2 cross product.
	out := ConsolidateQueries(in, 30)
	if len(out) != 2 {
		t.Errorf("len(out) = %d, want 2 under tight target", len(out))
	}
	coverageCheck(t, in, out)
}

func TestConsolidateQueries_PassThrough(t *testing.T) {
	in := []AvailabilityQuery{query("NRT-LAX")}
	if out := ConsolidateQueries(in, 1000); !reflect.DeepEqual(out, in) {
		t.Errorf("single query changed: %v", out)
	}
	if out := ConsolidateQueries(in, 0); !reflect.DeepEqual(out, in) {
		t.Errorf("zero target changed queries: %v", out)
	}
}

func TestDateSpanDays(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"2025-03-01", "2025-03-01", 1},
		{"2025-03-01", "2025-03-03", 3},
		{"bad", "2025-03-03", 1},
		{"2025-03-03", "2025-03-01", 1},
	}
	for _, tc := range cases {
		if got := dateSpanDays(tc.start, tc.end); got != tc.want {
			t.Errorf("dateSpanDays(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}
