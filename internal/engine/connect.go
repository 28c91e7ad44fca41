package engine

import (
	"time"

	"github.com/openmiles/awardengine/internal/model"
)

// Connection window: a layover must be at least 45 minutes and at most
// 24 hours.
const (
	MinConnectionGap = 45 * time.Minute
	MaxConnectionGap = 24 * time.Hour
)

var (
	minGapMs = MinConnectionGap.Milliseconds()
	maxGapMs = MaxConnectionGap.Milliseconds()
)

// flightTiming is the precomputed hot-path metadata for one flight.
// Timestamps are parsed to epoch milliseconds exactly once, here.
type flightTiming struct {
	departMs int64
	arriveMs int64
	origin   string
	dest     string
}

// ConnectionIndex is the two-level connection matrix for one request:
// group-level pruning first, then flight-pair validation restricted to
// connectable groups. It converts composition from a quadratic scan over
// flights into near-linear set lookups.
type ConnectionIndex struct {
	// groupMatrix: group key → keys of groups it may connect to.
	groupMatrix map[string]map[string]struct{}
	// flightMatrix: flight UUID → UUIDs reachable by a valid connection.
	flightMatrix map[string]map[string]struct{}

	timings map[string]flightTiming
}

// BuildConnectionIndex precomputes flight timings and both matrices from
// the segment pool.
func BuildConnectionIndex(pool *SegmentPool) *ConnectionIndex {
	idx := &ConnectionIndex{
		groupMatrix:  make(map[string]map[string]struct{}),
		flightMatrix: make(map[string]map[string]struct{}),
		timings:      make(map[string]flightTiming),
	}

	// ── Pass 1: flight timing metadata ──────────────────
	var groups []*model.Group
	byOrigin := make(map[string][]*model.Group)
	pool.All(func(g *model.Group) {
		groups = append(groups, g)
		byOrigin[g.Origin] = append(byOrigin[g.Origin], g)
		for _, f := range g.Flights {
			idx.timings[f.UUID] = flightTiming{
				departMs: f.DepartsAt.UnixMilli(),
				arriveMs: f.ArrivesAt.UnixMilli(),
				origin:   f.Origin,
				dest:     f.Destination,
			}
		}
	})

	// ── Pass 2: group matrix ────────────────────────────
	// Only groups departing from A's destination are candidates; the
	// timing envelopes then prune pairs that cannot contain a single
	// in-window connection. Groups without envelopes connect
	// conservatively.
	for _, a := range groups {
		candidates := byOrigin[a.Destination]
		if len(candidates) == 0 {
			continue
		}
		aKey := a.Key()
		for _, b := range candidates {
			if !groupsMayConnect(a, b) {
				continue
			}
			if idx.groupMatrix[aKey] == nil {
				idx.groupMatrix[aKey] = make(map[string]struct{})
			}
			idx.groupMatrix[aKey][b.Key()] = struct{}{}
		}
	}

	// ── Pass 3: flight matrix ───────────────────────────
	byKey := make(map[string]*model.Group, len(groups))
	for _, g := range groups {
		byKey[g.Key()] = g
	}
	for _, a := range groups {
		next := idx.groupMatrix[a.Key()]
		if len(next) == 0 {
			continue
		}
		for _, f := range a.Flights {
			ft := idx.timings[f.UUID]
			for bKey := range next {
				for _, g := range byKey[bKey].Flights {
					if f.UUID == g.UUID {
						continue
					}
					gap := idx.timings[g.UUID].departMs - ft.arriveMs
					if gap < minGapMs || gap > maxGapMs {
						continue
					}
					if idx.flightMatrix[f.UUID] == nil {
						idx.flightMatrix[f.UUID] = make(map[string]struct{})
					}
					idx.flightMatrix[f.UUID][g.UUID] = struct{}{}
				}
			}
		}
	}

	return idx
}

// groupsMayConnect applies the envelope test: the pair can hold at least
// one valid connection iff the latest possible gap reaches 45 minutes
// and the earliest possible gap stays under 24 hours.
func groupsMayConnect(a, b *model.Group) bool {
	if !a.HasEnvelope() || !b.HasEnvelope() {
		return true
	}
	if b.LatestDeparture.UnixMilli()-a.EarliestArrival.UnixMilli() < minGapMs {
		return false
	}
	if b.EarliestDeparture.UnixMilli()-a.LatestArrival.UnixMilli() > maxGapMs {
		return false
	}
	return true
}

// Connects reports whether next is reachable from prev by a valid
// connection.
func (idx *ConnectionIndex) Connects(prevUUID, nextUUID string) bool {
	_, ok := idx.flightMatrix[prevUUID][nextUUID]
	return ok
}

// GroupConnects reports whether the group pair survived envelope pruning.
func (idx *ConnectionIndex) GroupConnects(aKey, bKey string) bool {
	_, ok := idx.groupMatrix[aKey][bKey]
	return ok
}

// Timing returns the precomputed epoch-ms metadata for a flight.
func (idx *ConnectionIndex) Timing(uuid string) (departMs, arriveMs int64, ok bool) {
	t, ok := idx.timings[uuid]
	return t.departMs, t.arriveMs, ok
}
