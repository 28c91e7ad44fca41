package engine

import (
	"strings"

	"github.com/openmiles/awardengine/internal/model"
	"github.com/openmiles/awardengine/pkg/citygroup"
)

// DeriveRouteKey re-derives the canonical route key of a composed
// itinerary from the airports its flights actually touch.
//
// Each waypoint is the concrete airport code — `NRT-LAX`, never
// `TYO-LAX`, even when the request said TYO. The one exception is a
// connection that crosses airports inside a single city group (arrive
// NRT, depart HND): that junction is emitted as the city code.
func DeriveRouteKey(flights []*model.Flight, cities *citygroup.Lookup) string {
	if len(flights) == 0 {
		return ""
	}

	waypoints := []string{flights[0].Origin}
	for i := 0; i < len(flights)-1; i++ {
		arrive := flights[i].Destination
		depart := flights[i+1].Origin
		if arrive == depart {
			waypoints = append(waypoints, arrive)
		} else if city, ok := cities.SameCity(arrive, depart); ok {
			waypoints = append(waypoints, city)
		} else {
			// Cross-city transfer; keep both airports visible.
			waypoints = append(waypoints, arrive, depart)
		}
	}
	waypoints = append(waypoints, flights[len(flights)-1].Destination)

	return strings.Join(waypoints, "-")
}

// RouteItineraries is the composer's aggregate output:
// route key → departure date → list of UUID paths.
type RouteItineraries map[string]map[string][][]string

// Bucket inserts one composed path under its derived route key and date.
func (ri RouteItineraries) Bucket(routeKey, date string, path []string) {
	if ri[routeKey] == nil {
		ri[routeKey] = make(map[string][][]string)
	}
	ri[routeKey][date] = append(ri[routeKey][date], path)
}

// Merge folds another result set into this one. Safe because UUIDs are
// deterministic on immutable fields: parallel composer workers build
// disjoint local sets that merge without conflict.
func (ri RouteItineraries) Merge(other RouteItineraries) {
	for routeKey, dates := range other {
		for date, paths := range dates {
			for _, p := range paths {
				ri.Bucket(routeKey, date, p)
			}
		}
	}
}

// Walk visits every path. The visitor must not mutate the maps.
func (ri RouteItineraries) Walk(fn func(routeKey, date string, path []string)) {
	for routeKey, dates := range ri {
		for date, paths := range dates {
			for _, p := range paths {
				fn(routeKey, date, p)
			}
		}
	}
}

// CountPaths returns the total number of itineraries across all buckets.
func (ri RouteItineraries) CountPaths() int {
	n := 0
	ri.Walk(func(string, string, []string) { n++ })
	return n
}

// ResolveFlights maps a UUID path through the flight map, skipping
// nothing: the bool is false if any UUID is absent.
func ResolveFlights(path []string, flights map[string]*model.Flight) ([]*model.Flight, bool) {
	out := make([]*model.Flight, 0, len(path))
	for _, id := range path {
		f, ok := flights[id]
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
