package engine

import (
	"strings"

	"github.com/openmiles/awardengine/internal/model"
	"github.com/openmiles/awardengine/pkg/citygroup"
)

// Composer produces every valid flight-UUID sequence for a candidate
// route using an iterative depth-first search over an explicit stack.
// The stack form keeps per-path state visible and lets long compositions
// be abandoned between frames without unwinding goroutine stacks.
type Composer struct {
	pool   *SegmentPool
	conn   *ConnectionIndex
	cities *citygroup.Lookup
}

// NewComposer creates a composer over request-scoped pools.
func NewComposer(pool *SegmentPool, conn *ConnectionIndex, cities *citygroup.Lookup) *Composer {
	return &Composer{pool: pool, conn: conn, cities: cities}
}

// frame is one partial path on the work stack.
type frame struct {
	segIdx int
	path   []string
	used   []string // airports already visited, origin of leg 1 included
	prev   string   // UUID of the previous flight
	date   string   // calendar date of the first flight's local departure
}

// ComposeRoute returns every complete itinerary for one route, bucketed
// by departure date and deduplicated per date. Composition order follows
// group insertion order and carries no guarantee; downstream sorting
// makes it irrelevant.
func (c *Composer) ComposeRoute(route model.RouteStructure) map[string][][]string {
	segCount := len(route.Waypoints) - 1
	if segCount < 1 {
		return nil
	}

	// Alliance filtering happens once per group, never per flight.
	segGroups := make([][]*model.Group, segCount)
	for i := 0; i < segCount; i++ {
		segGroups[i] = c.segmentGroups(route, i, segCount)
		if len(segGroups[i]) == 0 {
			return nil
		}
	}

	results := make(map[string][][]string)
	seen := make(map[string]map[string]struct{}) // date → joined paths

	// Seed: every first-segment flight, bucketed by its departure date.
	var stack []frame
	for _, g := range segGroups[0] {
		for _, f := range g.Flights {
			stack = append(stack, frame{
				segIdx: 1,
				path:   []string{f.UUID},
				used:   []string{f.Origin, f.Destination},
				prev:   f.UUID,
				date:   f.DepartsAt.Format("2006-01-02"),
			})
		}
	}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.segIdx == segCount {
			key := strings.Join(fr.path, "|")
			if seen[fr.date] == nil {
				seen[fr.date] = make(map[string]struct{})
			}
			if _, dup := seen[fr.date][key]; dup {
				continue
			}
			seen[fr.date][key] = struct{}{}
			results[fr.date] = append(results[fr.date], fr.path)
			continue
		}

		for _, g := range segGroups[fr.segIdx] {
			for _, next := range g.Flights {
				// Loop avoidance: never revisit an airport.
				if contains(fr.used, next.Destination) {
					continue
				}
				// Fast connection check against the flight matrix.
				if !c.conn.Connects(fr.prev, next.UUID) {
					continue
				}

				path := make([]string, len(fr.path), len(fr.path)+1)
				copy(path, fr.path)
				path = append(path, next.UUID)

				used := make([]string, len(fr.used), len(fr.used)+1)
				copy(used, fr.used)
				used = append(used, next.Destination)

				stack = append(stack, frame{
					segIdx: fr.segIdx + 1,
					path:   path,
					used:   used,
					prev:   next.UUID,
					date:   fr.date,
				})
			}
		}
	}

	return results
}

// segmentGroups collects the alliance-filtered groups covering segment
// segIdx after city expansion of both endpoints.
func (c *Composer) segmentGroups(route model.RouteStructure, segIdx, segCount int) []*model.Group {
	whitelist := route.AllianceWhitelist(segIdx, segCount)

	var out []*model.Group
	for _, from := range c.cities.Expand(route.Waypoints[segIdx]) {
		for _, to := range c.cities.Expand(route.Waypoints[segIdx+1]) {
			for _, g := range c.pool.Groups(from, to) {
				if allianceAllowed(g.Alliance, whitelist) {
					out = append(out, g)
				}
			}
		}
	}
	return out
}

// allianceAllowed applies a segment whitelist; nil means any alliance.
func allianceAllowed(alliance string, whitelist []string) bool {
	if whitelist == nil {
		return true
	}
	return contains(whitelist, alliance)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
