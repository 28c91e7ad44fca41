package engine

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/openmiles/awardengine/internal/model"
)

// Ranker annotates surviving itineraries with precomputed sort/filter
// keys, then filters, sorts and paginates them. Precompute runs once per
// raw result; Apply runs once per filter combination.
type Ranker struct {
	eval    *Evaluator
	pricing *PricingIndex
}

// NewRanker creates a ranker sharing the request's evaluator and
// pricing index.
func NewRanker(eval *Evaluator, pricing *PricingIndex) *Ranker {
	return &Ranker{eval: eval, pricing: pricing}
}

// Precompute builds one OptimizedItinerary per surviving path. Ranking
// never needs the flight map again afterwards.
func (r *Ranker) Precompute(ri RouteItineraries, flights map[string]*model.Flight) []model.OptimizedItinerary {
	var out []model.OptimizedItinerary

	ri.Walk(func(routeKey, date string, path []string) {
		resolved, ok := ResolveFlights(path, flights)
		if !ok {
			return
		}

		first, last := resolved[0], resolved[len(resolved)-1]

		total := 0
		for i, f := range resolved {
			total += f.DurationMinutes
			if i > 0 {
				layover := int(f.DepartsAt.Sub(resolved[i-1].ArrivesAt).Minutes())
				if layover > 0 {
					total += layover
				}
			}
		}

		airlines := lo.Uniq(lo.Map(resolved, func(f *model.Flight, _ int) string {
			return f.Carrier()
		}))
		sort.Strings(airlines)

		var pricingIDs []string
		for _, f := range resolved {
			for _, e := range r.pricing.Match(f) {
				pricingIDs = append(pricingIDs, e.ID)
			}
		}
		pricingIDs = lo.Uniq(pricingIDs)

		waypoints := strings.Split(routeKey, "-")

		out = append(out, model.OptimizedItinerary{
			Itinerary: model.Itinerary{
				UUIDs:         path,
				RouteKey:      routeKey,
				DepartureDate: date,
			},
			TotalDuration: total,
			DepartureTime: first.DepartMs(),
			ArrivalTime:   last.ArriveMs(),
			StopCount:     len(waypoints) - 2,
			AirlineCodes:  airlines,
			Origin:        waypoints[0],
			Destination:   waypoints[len(waypoints)-1],
			Connections:   waypoints[1 : len(waypoints)-1],
			ClassPct:      r.eval.ClassPercentages(resolved),
			PricingIDs:    pricingIDs,
		})
	})

	return out
}

// ─── Filter / sort / paginate ───────────────────────────────

// Apply evaluates the optional predicates in a single pass, sorts by the
// requested key and paginates. The returned total counts the filtered
// set before pagination; metadata describes the unfiltered set so
// clients can widen their filters.
func Apply(itins []model.OptimizedItinerary, fp model.FilterParams) (page []model.OptimizedItinerary, total int, meta model.FilterMetadata) {
	meta = facetMetadata(itins)

	filtered := lo.Filter(itins, func(it model.OptimizedItinerary, _ int) bool {
		return matches(&it, &fp)
	})
	total = len(filtered)

	sortItineraries(filtered, fp.SortBy, fp.SortOrder)

	pageSize := fp.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	pageNum := fp.Page
	if pageNum < 1 {
		pageNum = 1
	}
	offset := (pageNum - 1) * pageSize
	if offset >= len(filtered) {
		return []model.OptimizedItinerary{}, total, meta
	}
	end := offset + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, meta
}

func matches(it *model.OptimizedItinerary, fp *model.FilterParams) bool {
	if len(fp.Stops) > 0 && !lo.Contains(fp.Stops, it.StopCount) {
		return false
	}
	if len(fp.IncludeAirlines) > 0 && !intersects(it.AirlineCodes, fp.IncludeAirlines) {
		return false
	}
	if len(fp.ExcludeAirlines) > 0 && intersects(it.AirlineCodes, fp.ExcludeAirlines) {
		return false
	}
	if fp.MaxDuration != nil && it.TotalDuration > *fp.MaxDuration {
		return false
	}

	if fp.MinYPercent != nil && it.ClassPct.Y < *fp.MinYPercent {
		return false
	}
	if fp.MinWPercent != nil && it.ClassPct.W < *fp.MinWPercent {
		return false
	}
	if fp.MinJPercent != nil && it.ClassPct.J < *fp.MinJPercent {
		return false
	}
	if fp.MinFPercent != nil && it.ClassPct.F < *fp.MinFPercent {
		return false
	}

	if fp.DepTimeMin != nil && it.DepartureTime < *fp.DepTimeMin {
		return false
	}
	if fp.DepTimeMax != nil && it.DepartureTime > *fp.DepTimeMax {
		return false
	}
	if fp.ArrTimeMin != nil && it.ArrivalTime < *fp.ArrTimeMin {
		return false
	}
	if fp.ArrTimeMax != nil && it.ArrivalTime > *fp.ArrTimeMax {
		return false
	}

	if len(fp.IncludeOrigin) > 0 && !lo.Contains(fp.IncludeOrigin, it.Origin) {
		return false
	}
	if len(fp.ExcludeOrigin) > 0 && lo.Contains(fp.ExcludeOrigin, it.Origin) {
		return false
	}
	if len(fp.IncludeDestination) > 0 && !lo.Contains(fp.IncludeDestination, it.Destination) {
		return false
	}
	if len(fp.ExcludeDestination) > 0 && lo.Contains(fp.ExcludeDestination, it.Destination) {
		return false
	}
	if len(fp.IncludeConnection) > 0 && !intersects(it.Connections, fp.IncludeConnection) {
		return false
	}
	if len(fp.ExcludeConnection) > 0 && intersects(it.Connections, fp.ExcludeConnection) {
		return false
	}

	if fp.Search != "" {
		needle := strings.ToUpper(fp.Search)
		haystack := it.RouteKey + " " + strings.Join(it.AirlineCodes, " ")
		if !strings.Contains(strings.ToUpper(haystack), needle) {
			return false
		}
	}

	return true
}

// sortItineraries orders by the requested key. duration and departure
// sort lower-is-better, arrival and cabin percentages higher-is-better;
// sortOrder=desc reverses the primary key. Ties always break by
// totalDuration ascending.
func sortItineraries(itins []model.OptimizedItinerary, sortBy, sortOrder string) {
	desc := sortOrder == "desc"

	key := func(it *model.OptimizedItinerary) (float64, bool) {
		switch sortBy {
		case model.SortDeparture:
			return float64(it.DepartureTime), false
		case model.SortArrival:
			return float64(it.ArrivalTime), true
		case model.SortY:
			return it.ClassPct.Y, true
		case model.SortW:
			return it.ClassPct.W, true
		case model.SortJ:
			return it.ClassPct.J, true
		case model.SortF:
			return it.ClassPct.F, true
		default: // duration
			return float64(it.TotalDuration), false
		}
	}

	sort.SliceStable(itins, func(i, j int) bool {
		vi, higherBetter := key(&itins[i])
		vj, _ := key(&itins[j])
		if vi != vj {
			less := vi < vj
			if higherBetter {
				less = !less
			}
			if desc {
				less = !less
			}
			return less
		}
		return itins[i].TotalDuration < itins[j].TotalDuration
	})
}

// facetMetadata summarizes the unfiltered set for client filter UIs.
func facetMetadata(itins []model.OptimizedItinerary) model.FilterMetadata {
	meta := model.FilterMetadata{}
	if len(itins) == 0 {
		return meta
	}

	stops := map[int]struct{}{}
	airlines := map[string]struct{}{}
	airports := map[string]struct{}{}

	meta.MinDuration = itins[0].TotalDuration
	meta.MaxDuration = itins[0].TotalDuration
	meta.MinDepTime = itins[0].DepartureTime
	meta.MaxDepTime = itins[0].DepartureTime
	meta.MinArrTime = itins[0].ArrivalTime
	meta.MaxArrTime = itins[0].ArrivalTime

	for i := range itins {
		it := &itins[i]
		stops[it.StopCount] = struct{}{}
		for _, a := range it.AirlineCodes {
			airlines[a] = struct{}{}
		}
		airports[it.Origin] = struct{}{}
		airports[it.Destination] = struct{}{}
		for _, c := range it.Connections {
			airports[c] = struct{}{}
		}

		meta.MinDuration = min(meta.MinDuration, it.TotalDuration)
		meta.MaxDuration = max(meta.MaxDuration, it.TotalDuration)
		meta.MinDepTime = min(meta.MinDepTime, it.DepartureTime)
		meta.MaxDepTime = max(meta.MaxDepTime, it.DepartureTime)
		meta.MinArrTime = min(meta.MinArrTime, it.ArrivalTime)
		meta.MaxArrTime = max(meta.MaxArrTime, it.ArrivalTime)
	}

	meta.Stops = lo.Keys(stops)
	sort.Ints(meta.Stops)
	meta.Airlines = lo.Keys(airlines)
	sort.Strings(meta.Airlines)
	meta.Airports = lo.Keys(airports)
	sort.Strings(meta.Airports)
	return meta
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if lo.Contains(b, x) {
			return true
		}
	}
	return false
}
