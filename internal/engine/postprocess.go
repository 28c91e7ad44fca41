package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

// PostProcessor runs the fixed-order cleanup pipeline between the
// composer and the ranker:
//
//	dedup per (route, date) → drop empty buckets → prune flight map →
//	date-window filter → reliability filter → drop empty buckets →
//	prune flight map and pricing again.
type PostProcessor struct {
	eval *Evaluator
	log  *zap.SugaredLogger
}

// NewPostProcessor creates the pipeline with the given evaluator.
func NewPostProcessor(eval *Evaluator, log *zap.SugaredLogger) *PostProcessor {
	return &PostProcessor{eval: eval, log: log.Named("postprocess")}
}

// Run executes the pipeline in place and returns the pruned pricing map.
// startDate/endDate are inclusive YYYY-MM-DD bounds on the first
// flight's local departure date.
func (pp *PostProcessor) Run(ri RouteItineraries, pools *Pools, startDate, endDate string) map[string]*model.PricingEntry {
	before := ri.CountPaths()

	dedup(ri)
	pruneFlights(ri, pools.Flights)
	filterDates(ri, startDate, endDate)
	evicted := FilterItineraries(ri, pools.Flights, pp.eval)
	pruneFlights(ri, pools.Flights)

	pricing := prunePricing(ri, pools)

	pp.log.Infow("post-processing complete",
		"itinerariesIn", before,
		"itinerariesOut", ri.CountPaths(),
		"reliabilityEvicted", evicted,
		"flightsKept", len(pools.Flights),
		"pricingKept", len(pricing))

	return pricing
}

// dedup removes per-(route, date) duplicates by canonical UUID string.
// Empty buckets are dropped as they appear.
func dedup(ri RouteItineraries) {
	for routeKey, dates := range ri {
		for date, paths := range dates {
			seen := make(map[string]struct{}, len(paths))
			kept := paths[:0]
			for _, path := range paths {
				key := strings.Join(path, "|")
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				kept = append(kept, path)
			}
			if len(kept) == 0 {
				delete(dates, date)
			} else {
				dates[date] = kept
			}
		}
		if len(dates) == 0 {
			delete(ri, routeKey)
		}
	}
}

// pruneFlights drops every flight no surviving itinerary references.
func pruneFlights(ri RouteItineraries, flights map[string]*model.Flight) {
	used := make(map[string]struct{})
	ri.Walk(func(_, _ string, path []string) {
		for _, id := range path {
			used[id] = struct{}{}
		}
	})
	for id := range flights {
		if _, ok := used[id]; !ok {
			delete(flights, id)
		}
	}
}

// filterDates keeps itineraries whose departure date falls inside the
// requested window. Dates are local calendar dates in ISO form, so the
// inclusive window check is a plain string comparison.
func filterDates(ri RouteItineraries, startDate, endDate string) {
	for routeKey, dates := range ri {
		for date := range dates {
			if date < startDate || date > endDate {
				delete(dates, date)
			}
		}
		if len(dates) == 0 {
			delete(ri, routeKey)
		}
	}
}

// prunePricing keeps only pricing entries matched by a surviving flight.
func prunePricing(ri RouteItineraries, pools *Pools) map[string]*model.PricingEntry {
	out := make(map[string]*model.PricingEntry)
	ri.Walk(func(_, _ string, path []string) {
		for _, id := range path {
			f, ok := pools.Flights[id]
			if !ok {
				continue
			}
			for _, e := range pools.Pricing.Match(f) {
				out[e.ID] = e
			}
		}
	})
	return out
}
