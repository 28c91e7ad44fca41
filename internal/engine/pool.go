package engine

import (
	"time"

	"github.com/openmiles/awardengine/internal/fetch"
	"github.com/openmiles/awardengine/internal/model"
)

// SegmentPool buckets availability groups by directed airport pair.
// Insertion order is preserved per segment; duplicates are permitted —
// deduplication happens per-UUID downstream.
type SegmentPool struct {
	segments map[model.SegmentKey][]*model.Group
}

// NewSegmentPool creates an empty pool.
func NewSegmentPool() *SegmentPool {
	return &SegmentPool{segments: make(map[model.SegmentKey][]*model.Group)}
}

// Add appends a group under its (origin, destination) key.
func (p *SegmentPool) Add(g *model.Group) {
	key := model.SegmentKey{From: g.Origin, To: g.Destination}
	p.segments[key] = append(p.segments[key], g)
}

// Groups returns the groups for a directed airport pair, in insertion
// order. Nil when the segment has no offers.
func (p *SegmentPool) Groups(from, to string) []*model.Group {
	return p.segments[model.SegmentKey{From: from, To: to}]
}

// HasSegment reports whether at least one group covers the pair.
func (p *SegmentPool) HasSegment(from, to string) bool {
	return len(p.segments[model.SegmentKey{From: from, To: to}]) > 0
}

// All iterates every group in the pool.
func (p *SegmentPool) All(fn func(g *model.Group)) {
	for _, groups := range p.segments {
		for _, g := range groups {
			fn(g)
		}
	}
}

// Len returns the number of distinct segment keys.
func (p *SegmentPool) Len() int { return len(p.segments) }

// ─── Pricing index ──────────────────────────────────────────

// pricingKey addresses pricing entries by flight and route.
type pricingKey struct {
	flightNumber string
	origin       string
	destination  string
	source       string
}

// PricingIndex holds pricing entries by ID and by
// (flight number, origin, destination, source).
type PricingIndex struct {
	byID            map[string]*model.PricingEntry
	byFlightAndRoute map[pricingKey][]*model.PricingEntry
}

// NewPricingIndex creates an empty index.
func NewPricingIndex() *PricingIndex {
	return &PricingIndex{
		byID:            make(map[string]*model.PricingEntry),
		byFlightAndRoute: make(map[pricingKey][]*model.PricingEntry),
	}
}

// Add indexes one pricing entry.
func (idx *PricingIndex) Add(e *model.PricingEntry) {
	idx.byID[e.ID] = e
	key := pricingKey{e.FlightNumber, e.Origin, e.Destination, e.Source}
	idx.byFlightAndRoute[key] = append(idx.byFlightAndRoute[key], e)
}

// Match returns the entries priced for the given flight segment.
func (idx *PricingIndex) Match(f *model.Flight) []*model.PricingEntry {
	return idx.byFlightAndRoute[pricingKey{f.FlightNumber, f.Origin, f.Destination, f.Source}]
}

// ByID resolves an entry by its ID.
func (idx *PricingIndex) ByID(id string) (*model.PricingEntry, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// Entries returns the full ID → entry map (shared, not copied).
func (idx *PricingIndex) Entries() map[string]*model.PricingEntry {
	return idx.byID
}

// ─── Pool construction ──────────────────────────────────────

// Pools is everything the fan-out results expand into: the segment pool,
// the flight map keyed by UUID, and the pricing index.
type Pools struct {
	Segments *SegmentPool
	Flights  map[string]*model.Flight
	Pricing  *PricingIndex
}

// BuildPools walks the fetcher output, assigns flight identities and
// fills the three pools. Flights missing a duration get it derived from
// their timestamps.
func BuildPools(results []fetch.SubqueryResult) *Pools {
	p := &Pools{
		Segments: NewSegmentPool(),
		Flights:  make(map[string]*model.Flight),
		Pricing:  NewPricingIndex(),
	}

	for i := range results {
		for _, g := range results[i].Groups {
			for _, f := range g.Flights {
				if f.UUID == "" {
					f.UUID = FlightUUID(f.FlightNumber, f.DepartsAt, f.ArrivesAt)
				}
				if f.DurationMinutes == 0 {
					f.DurationMinutes = int(f.ArrivesAt.Sub(f.DepartsAt) / time.Minute)
				}
				if f.Origin == "" {
					f.Origin = g.Origin
				}
				if f.Destination == "" {
					f.Destination = g.Destination
				}
				p.Flights[f.UUID] = f
			}
			p.Segments.Add(g)
		}
		for _, e := range results[i].Pricing {
			p.Pricing.Add(e)
		}
	}
	return p
}
