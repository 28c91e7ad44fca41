package engine

import (
	"github.com/openmiles/awardengine/pkg/citygroup"

	"github.com/openmiles/awardengine/internal/model"
)

// FilterRoutes drops candidate routes that cannot possibly compose: any
// segment whose city-expanded (from, to) pairs all lack offers kills the
// route.
//
// In region mode the waypoints are subregions already validated by the
// upstream enumerator, so pre-filtering is skipped entirely.
func FilterRoutes(routes []model.RouteStructure, pool *SegmentPool, cities *citygroup.Lookup, region bool) []model.RouteStructure {
	if region {
		return routes
	}

	out := make([]model.RouteStructure, 0, len(routes))
	for _, route := range routes {
		if routeHasOffers(&route, pool, cities) {
			out = append(out, route)
		}
	}
	return out
}

func routeHasOffers(route *model.RouteStructure, pool *SegmentPool, cities *citygroup.Lookup) bool {
	if len(route.Waypoints) < 2 {
		return false
	}
	for i := 0; i < len(route.Waypoints)-1; i++ {
		if !segmentHasOffers(route.Waypoints[i], route.Waypoints[i+1], pool, cities) {
			return false
		}
	}
	return true
}

func segmentHasOffers(fromCode, toCode string, pool *SegmentPool, cities *citygroup.Lookup) bool {
	for _, from := range cities.Expand(fromCode) {
		for _, to := range cities.Expand(toCode) {
			if pool.HasSegment(from, to) {
				return true
			}
		}
	}
	return false
}
