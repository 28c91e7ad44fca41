package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/cache"
	"github.com/openmiles/awardengine/pkg/pool"
)

// FanOutResult aggregates the whole availability fan-out.
//
// MinRateLimitRemaining/Reset are the minimum across all live
// subqueries — the most-constrained projection of remaining quota at
// request end. -1 means no subquery reached the provider.
type FanOutResult struct {
	Results []SubqueryResult

	MinRateLimitRemaining int
	MinRateLimitReset     int
	TotalUpstreamRequests int
	ErroredSubqueries     int
}

// Fetcher fans availability subqueries out to the provider with bounded
// concurrency, consulting the subquery cache first.
type Fetcher struct {
	provider    Provider
	store       *cache.Store
	concurrency int
	log         *zap.SugaredLogger
}

// NewFetcher creates a fetcher. concurrency below 1 is clamped to 1.
func NewFetcher(provider Provider, store *cache.Store, concurrency int, log *zap.SugaredLogger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		provider:    provider,
		store:       store,
		concurrency: concurrency,
		log:         log.Named("fetch"),
	}
}

// FanOut runs every subquery and merges the outcome. Provider errors
// demote individual subqueries to empty result sets; only context
// cancellation aborts the whole fan-out.
func (f *Fetcher) FanOut(ctx context.Context, queries []AvailabilityQuery, proKey string) (*FanOutResult, error) {
	tasks := make([]pool.Task[SubqueryResult], len(queries))
	for i, q := range queries {
		q := q
		tasks[i] = func(ctx context.Context) (SubqueryResult, error) {
			return f.runSubquery(ctx, q, proKey), nil
		}
	}

	results, err := pool.Run(ctx, tasks, f.concurrency)
	if err != nil {
		// Subquery tasks never return errors of their own; this is the
		// upstream deadline or cancellation propagating.
		return nil, err
	}

	out := &FanOutResult{
		Results:               results,
		MinRateLimitRemaining: -1,
		MinRateLimitReset:     -1,
	}
	for i := range results {
		r := &results[i]
		out.TotalUpstreamRequests += r.UpstreamRequests
		if r.Errored {
			out.ErroredSubqueries++
		}
		if r.RateLimitRemaining >= 0 &&
			(out.MinRateLimitRemaining < 0 || r.RateLimitRemaining < out.MinRateLimitRemaining) {
			out.MinRateLimitRemaining = r.RateLimitRemaining
		}
		if r.RateLimitReset >= 0 &&
			(out.MinRateLimitReset < 0 || r.RateLimitReset < out.MinRateLimitReset) {
			out.MinRateLimitReset = r.RateLimitReset
		}
	}

	f.log.Infow("fan-out complete",
		"subqueries", len(queries),
		"errored", out.ErroredSubqueries,
		"upstreamRequests", out.TotalUpstreamRequests,
		"minRemaining", out.MinRateLimitRemaining)

	return out, nil
}

func (f *Fetcher) runSubquery(ctx context.Context, q AvailabilityQuery, proKey string) SubqueryResult {
	key := cache.AvailabilityKey(q)

	var cached SubqueryResult
	if err := f.store.GetAvailability(ctx, key, &cached); err == nil {
		cached.Query = q
		cached.FromCache = true
		cached.RateLimitRemaining = -1
		cached.RateLimitReset = -1
		cached.UpstreamRequests = 0
		return cached
	}

	result, err := f.provider.Availability(ctx, q, proKey)
	if err != nil {
		f.log.Warnw("subquery failed, demoting to empty", "routeId", q.RouteID, "err", err)
		return SubqueryResult{Query: q, RateLimitRemaining: -1, RateLimitReset: -1, Errored: true}
	}

	f.store.SetAvailability(ctx, key, result)
	return *result
}
