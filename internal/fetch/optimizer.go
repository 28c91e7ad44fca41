package fetch

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Route-group consolidation: many candidate groups become fewer provider
// calls by (1) star decomposition of the bipartite origin→destination
// edge set and (2) first-fit-decreasing bin packing of the stars under a
// target response size. The output is equivalence-preserving — every
// original (origin, destination) pair is covered by some consolidated
// group's cross product; extra pairs only cost response volume.

// EstimatedOffersPerPairDay is the packing weight of one (origin,
// destination) pair for one calendar day.
const EstimatedOffersPerPairDay = 8

// RouteGroup is a parsed "ORIG1/ORIG2-DEST1/DEST2" route ID.
type RouteGroup struct {
	Origins      []string
	Destinations []string
}

// ParseRouteID splits a compact route-group string.
func ParseRouteID(id string) RouteGroup {
	from, to, _ := strings.Cut(id, "-")
	return RouteGroup{
		Origins:      splitNonEmpty(from),
		Destinations: splitNonEmpty(to),
	}
}

// RouteID renders the group back to its compact form with sorted codes.
func (g RouteGroup) RouteID() string {
	origins := append([]string(nil), g.Origins...)
	dests := append([]string(nil), g.Destinations...)
	sort.Strings(origins)
	sort.Strings(dests)
	return strings.Join(origins, "/") + "-" + strings.Join(dests, "/")
}

// Covers reports whether the (origin, destination) pair lies inside this
// group's cross product.
func (g RouteGroup) Covers(origin, destination string) bool {
	return lo.Contains(g.Origins, origin) && lo.Contains(g.Destinations, destination)
}

// ConsolidateQueries rewrites the fan-out plan into fewer provider calls.
// Only queries sharing all non-route fields are merged with each other.
func ConsolidateQueries(queries []AvailabilityQuery, targetOffers int) []AvailabilityQuery {
	if targetOffers <= 0 || len(queries) < 2 {
		return queries
	}

	// Partition by the common filters; the route ID is the only field
	// consolidation may change.
	buckets := lo.GroupBy(queries, func(q AvailabilityQuery) AvailabilityQuery {
		q.RouteID = ""
		return q
	})

	out := make([]AvailabilityQuery, 0, len(queries))
	for common, bucket := range buckets {
		groups := consolidate(lo.Map(bucket, func(q AvailabilityQuery, _ int) RouteGroup {
			return ParseRouteID(q.RouteID)
		}), targetOffers, dateSpanDays(common.StartDate, common.EndDate))

		for _, g := range groups {
			q := common
			q.RouteID = g.RouteID()
			out = append(out, q)
		}
	}
	return out
}

// consolidate performs the star decomposition + bin packing for one
// filter bucket.
func consolidate(groups []RouteGroup, targetOffers, spanDays int) []RouteGroup {
	// Flatten to the bipartite edge set.
	edges := map[string]map[string]struct{}{}
	for _, g := range groups {
		for _, o := range g.Origins {
			if edges[o] == nil {
				edges[o] = map[string]struct{}{}
			}
			for _, d := range g.Destinations {
				edges[o][d] = struct{}{}
			}
		}
	}

	// Star decomposition: one star per origin, then merge origins whose
	// destination sets are identical.
	type star struct {
		origins []string
		dests   []string
	}
	byDestSet := map[string]*star{}
	for origin, destSet := range edges {
		dests := lo.Keys(destSet)
		sort.Strings(dests)
		sig := strings.Join(dests, "/")
		if s, ok := byDestSet[sig]; ok {
			s.origins = append(s.origins, origin)
		} else {
			byDestSet[sig] = &star{origins: []string{origin}, dests: dests}
		}
	}

	stars := lo.Values(byDestSet)
	for _, s := range stars {
		sort.Strings(s.origins)
	}

	estimate := func(origins, dests int) int {
		return origins * dests * spanDays * EstimatedOffersPerPairDay
	}

	// First-fit decreasing: largest stars seed bins; smaller stars join
	// the first bin whose merged cross product stays under target.
	sort.Slice(stars, func(i, j int) bool {
		si := estimate(len(stars[i].origins), len(stars[i].dests))
		sj := estimate(len(stars[j].origins), len(stars[j].dests))
		if si != sj {
			return si > sj
		}
		return stars[i].dests[0] < stars[j].dests[0]
	})

	var bins []*star
	for _, s := range stars {
		placed := false
		for _, bin := range bins {
			mergedOrigins := lo.Union(bin.origins, s.origins)
			mergedDests := lo.Union(bin.dests, s.dests)
			if estimate(len(mergedOrigins), len(mergedDests)) <= targetOffers {
				bin.origins = mergedOrigins
				bin.dests = mergedDests
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, &star{
				origins: append([]string(nil), s.origins...),
				dests:   append([]string(nil), s.dests...),
			})
		}
	}

	return lo.Map(bins, func(b *star, _ int) RouteGroup {
		return RouteGroup{Origins: b.origins, Destinations: b.dests}
	})
}

func splitNonEmpty(s string) []string {
	return lo.Filter(strings.Split(s, "/"), func(p string, _ int) bool {
		return p != ""
	})
}

func dateSpanDays(start, end string) int {
	s, err1 := time.Parse("2006-01-02", start)
	e, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil || e.Before(s) {
		return 1
	}
	return int(e.Sub(s).Hours()/24) + 1
}
