package engine

import (
	"testing"
	"time"

	"github.com/openmiles/awardengine/internal/model"
	"github.com/openmiles/awardengine/pkg/citygroup"
)

// Shared fixtures for the engine tests. Times are UTC and written as
// "2006-01-02 15:04"; seat counts default to 9 in every cabin so tests
// only override what they exercise.

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", s, err)
	}
	return parsed
}

func flightAt(t *testing.T, number, origin, dest, depart, arrive string) *model.Flight {
	t.Helper()
	dep, arr := ts(t, depart), ts(t, arrive)
	return &model.Flight{
		UUID:            FlightUUID(number, dep, arr),
		FlightNumber:    number,
		DepartsAt:       dep,
		ArrivesAt:       arr,
		DurationMinutes: int(arr.Sub(dep) / time.Minute),
		Origin:          origin,
		Destination:     dest,
		YCount:          9,
		WCount:          9,
		JCount:          9,
		FCount:          9,
		Source:          "aero",
	}
}

func groupOf(origin, dest, date, alliance string, flights ...*model.Flight) *model.Group {
	return &model.Group{
		Origin:      origin,
		Destination: dest,
		Date:        date,
		Alliance:    alliance,
		Source:      "aero",
		Flights:     flights,
	}
}

func poolOf(groups ...*model.Group) *SegmentPool {
	p := NewSegmentPool()
	for _, g := range groups {
		p.Add(g)
	}
	return p
}

func noCities() *citygroup.Lookup {
	return citygroup.New(nil)
}

func tokyoCities() *citygroup.Lookup {
	return citygroup.New(map[string][]string{"TYO": {"NRT", "HND"}})
}
