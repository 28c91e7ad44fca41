package engine

import (
	"github.com/openmiles/awardengine/internal/model"
)

// Evaluator applies the per-carrier reliability rules at a given
// threshold. It is a small pure core because the cabin-percentage math
// is the single most test-sensitive piece of the engine.
//
// Convention: every duration ratio here is computed over flight time
// only — layover minutes are excluded from both numerator and
// denominator.
type Evaluator struct {
	table     model.ReliabilityTable
	threshold int
}

// NewEvaluator creates an evaluator. An empty table makes every carrier
// default to min_count=1.
func NewEvaluator(table model.ReliabilityTable, threshold int) *Evaluator {
	return &Evaluator{table: table, threshold: threshold}
}

// Threshold returns the active reliability threshold percent.
func (e *Evaluator) Threshold() int { return e.threshold }

// minCountFor resolves the effective seat minimum for a carrier/cabin.
// An exempted cabin waives the carrier minimum down to a single seat.
func (e *Evaluator) minCountFor(carrier string, c model.CabinClass) int {
	rule := e.table.Rule(carrier)
	if rule.Exempts(c) || rule.MinCount < 1 {
		return 1
	}
	return rule.MinCount
}

// ReliableForCabin reports whether the flight's seat count in cabin c
// meets the carrier minimum.
func (e *Evaluator) ReliableForCabin(f *model.Flight, c model.CabinClass) bool {
	return f.SeatCount(c) >= e.minCountFor(f.Carrier(), c)
}

// UnreliableForAllCabins reports whether the flight fails the carrier
// minimum in every cabin. Only such flights count against the eviction
// budget.
func (e *Evaluator) UnreliableForAllCabins(f *model.Flight) bool {
	for _, c := range model.Cabins {
		if e.ReliableForCabin(f, c) {
			return false
		}
	}
	return true
}

// AcceptItinerary applies the eviction rule: the itinerary survives iff
// the summed duration of its fully-unreliable flights stays within
// (100 − threshold)% of its total flight duration.
func (e *Evaluator) AcceptItinerary(flights []*model.Flight) bool {
	totalDur, unreliableDur := 0, 0
	for _, f := range flights {
		totalDur += f.DurationMinutes
		if e.UnreliableForAllCabins(f) {
			unreliableDur += f.DurationMinutes
		}
	}
	if totalDur <= 0 {
		return false
	}
	return unreliableDur*100 <= (100-e.threshold)*totalDur
}

// ClassPercentages computes the reliability-aware cabin coverage.
//
//   - Y is binary: 100 when every flight has a positive Y count, else 0.
//   - W/J/F are the share of flight time covered by flights that have a
//     positive count in the class and are not reliability-penalized.
//
// The penalty zeroes a flight for class X iff its duration exceeds the
// unreliable budget — (100 − threshold)% of total flight time — while
// its X count sits below the carrier minimum (exemptions waive the
// minimum).
func (e *Evaluator) ClassPercentages(flights []*model.Flight) model.ClassPercentages {
	totalDur := 0
	for _, f := range flights {
		totalDur += f.DurationMinutes
	}
	if totalDur <= 0 {
		return model.ClassPercentages{}
	}

	pct := model.ClassPercentages{Y: 100}
	for _, f := range flights {
		if f.YCount <= 0 {
			pct.Y = 0
			break
		}
	}

	budget := (100 - e.threshold) * totalDur // compare against dur*100

	coverage := func(c model.CabinClass) float64 {
		covered := 0
		for _, f := range flights {
			if f.SeatCount(c) <= 0 {
				continue
			}
			penalized := f.DurationMinutes*100 > budget &&
				f.SeatCount(c) < e.minCountFor(f.Carrier(), c)
			if penalized {
				continue
			}
			covered += f.DurationMinutes
		}
		return float64(covered) / float64(totalDur) * 100
	}

	pct.W = coverage(model.CabinW)
	pct.J = coverage(model.CabinJ)
	pct.F = coverage(model.CabinF)
	return pct
}

// FilterItineraries evicts every itinerary rejected by the evaluator and
// returns the number removed. Flight-map pruning is the caller's job —
// the post-processing pipeline fixes the order of those steps.
func FilterItineraries(ri RouteItineraries, flights map[string]*model.Flight, e *Evaluator) int {
	evicted := 0
	for routeKey, dates := range ri {
		for date, paths := range dates {
			kept := paths[:0]
			for _, path := range paths {
				resolved, ok := ResolveFlights(path, flights)
				if ok && e.AcceptItinerary(resolved) {
					kept = append(kept, path)
				} else {
					evicted++
				}
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
	return evicted
}
