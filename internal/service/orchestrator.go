// Package service contains the request orchestration for the award
// itinerary engine: rate limiting, the two cache tiers, upstream
// fan-out, composition, post-processing and ranking, plus credential
// rotation and opportunistic metrics.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openmiles/awardengine/config"
	"github.com/openmiles/awardengine/internal/cache"
	"github.com/openmiles/awardengine/internal/engine"
	"github.com/openmiles/awardengine/internal/fetch"
	"github.com/openmiles/awardengine/internal/metrics"
	"github.com/openmiles/awardengine/internal/model"
	"github.com/openmiles/awardengine/internal/ratelimit"
	"github.com/openmiles/awardengine/internal/reliability"
	"github.com/openmiles/awardengine/internal/repository"
	"github.com/openmiles/awardengine/pkg/citygroup"
	"github.com/openmiles/awardengine/pkg/pool"
)

// coreParams is the part of the request that determines the raw result
// set. Filter parameters deliberately stay out: they only shape the
// filtered tier.
type coreParams struct {
	Origin                string `json:"origin"`
	Destination           string `json:"destination"`
	MaxStop               int    `json:"maxStop"`
	StartDate             string `json:"startDate"`
	EndDate               string `json:"endDate"`
	Cabin                 string `json:"cabin,omitempty"`
	Carriers              string `json:"carriers,omitempty"`
	MinReliabilityPercent int    `json:"minReliabilityPercent"`
	Seats                 int    `json:"seats,omitempty"`
	United                bool   `json:"united,omitempty"`
	BinBin                bool   `json:"binbin,omitempty"`
	Region                bool   `json:"region,omitempty"`
}

// Orchestrator wires the engine components for one process.
type Orchestrator struct {
	store        *cache.Store
	gate         *ratelimit.Gate
	relTable     *reliability.Cache
	routes       *fetch.RouteClient
	fetcher      *fetch.Fetcher
	proKeys      *repository.ProKeyRepository
	routeMetrics *repository.MetricsRepository
	cities       *citygroup.Lookup
	cfg          config.EngineConfig
	log          *zap.SugaredLogger
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(
	store *cache.Store,
	gate *ratelimit.Gate,
	relTable *reliability.Cache,
	routes *fetch.RouteClient,
	fetcher *fetch.Fetcher,
	proKeys *repository.ProKeyRepository,
	routeMetrics *repository.MetricsRepository,
	cities *citygroup.Lookup,
	cfg config.EngineConfig,
	log *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		store:        store,
		gate:         gate,
		relTable:     relTable,
		routes:       routes,
		fetcher:      fetcher,
		proKeys:      proKeys,
		routeMetrics: routeMetrics,
		cities:       cities,
		cfg:          cfg,
		log:          log.Named("orchestrator"),
	}
}

// BuildItineraries is the main entry point behind POST
// /build-itineraries.
//
// Flow: rate-limit gate → filtered cache → raw cache → route topology →
// availability fan-out → pools → matrices → pre-filter → composer →
// post-processing → metadata precompute → rank → both cache tiers.
func (o *Orchestrator) BuildItineraries(ctx context.Context, clientIP string, req *model.BuildRequest, fp model.FilterParams) (*model.BuildResponse, error) {
	start := time.Now()
	defer func() { metrics.RequestDuration.Observe(time.Since(start).Seconds()) }()

	// ── Rate limits ─────────────────────────────────────
	if err := o.gate.Check(ctx, clientIP, req, &fp); err != nil {
		metrics.RateLimitRejections.Inc()
		return nil, err
	}

	core := coreParams{
		Origin:                req.Origin,
		Destination:           req.Destination,
		MaxStop:               req.MaxStop,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		Cabin:                 req.Cabin,
		Carriers:              req.Carriers,
		MinReliabilityPercent: req.ReliabilityThreshold(),
		Seats:                 req.Seats,
		United:                req.United,
		BinBin:                req.BinBin,
		Region:                req.Region,
	}
	rawKey := cache.RawKey(req.Origin, req.Destination, core)
	filteredKey := cache.FilteredKey(rawKey, fp)

	// ── Filtered tier ───────────────────────────────────
	if resp, err := o.store.GetFiltered(ctx, filteredKey); err == nil {
		metrics.CacheLookups.WithLabelValues("filtered", "hit").Inc()
		return resp, nil
	}
	metrics.CacheLookups.WithLabelValues("filtered", "miss").Inc()

	// ── Raw tier ────────────────────────────────────────
	if rec, err := o.store.GetRaw(ctx, rawKey); err == nil {
		metrics.CacheLookups.WithLabelValues("raw", "hit").Inc()
		resp := o.respond(ctx, rec, fp, filteredKey)
		return resp, nil
	}
	metrics.CacheLookups.WithLabelValues("raw", "miss").Inc()

	// ── Full build ──────────────────────────────────────
	rec, err := o.build(ctx, req)
	if err != nil {
		return nil, err
	}
	o.store.SetRaw(ctx, rawKey, rec)

	return o.respond(ctx, rec, fp, filteredKey), nil
}

// build runs the upstream fan-out and the composition pipeline,
// producing the raw record for the cache.
func (o *Orchestrator) build(ctx context.Context, req *model.BuildRequest) (*cache.RawRecord, error) {
	// ── Route topology ──────────────────────────────────
	topo, err := o.routes.CreateFullRoutePath(ctx, fetch.RoutesRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		MaxStop:     req.MaxStop,
		BinBin:      req.BinBin,
		Region:      req.Region,
	})
	if err != nil {
		return nil, err
	}

	// ── Credentials ─────────────────────────────────────
	proKey, err := o.proKeys.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	// ── Availability fan-out ────────────────────────────
	queries := topo.QueryParamsArr
	if o.cfg.OptimizeRouteGroups {
		before := len(queries)
		queries = fetch.ConsolidateQueries(queries, o.cfg.TargetResponseOffers)
		o.log.Debugw("route groups consolidated", "before", before, "after", len(queries))
	}

	fanout, err := o.fetcher.FanOut(ctx, queries, proKey.Key)
	if err != nil {
		return nil, err
	}
	for i := range fanout.Results {
		switch {
		case fanout.Results[i].Errored:
			metrics.UpstreamSubqueries.WithLabelValues("errored").Inc()
		case fanout.Results[i].FromCache:
			metrics.UpstreamSubqueries.WithLabelValues("cached").Inc()
		default:
			metrics.UpstreamSubqueries.WithLabelValues("ok").Inc()
		}
	}

	// ── Pools, matrices, pre-filter ─────────────────────
	pools := engine.BuildPools(fanout.Results)
	connIdx := engine.BuildConnectionIndex(pools.Segments)
	validRoutes := engine.FilterRoutes(topo.Routes, pools.Segments, o.cities, req.Region)

	o.log.Infow("pipeline input ready",
		"routes", len(topo.Routes),
		"validRoutes", len(validRoutes),
		"segments", pools.Segments.Len(),
		"flights", len(pools.Flights))

	// ── Composition ─────────────────────────────────────
	composed := o.compose(ctx, validRoutes, pools, connIdx)

	// ── Post-processing and precompute ──────────────────
	eval := engine.NewEvaluator(o.relTable.Table(ctx), req.ReliabilityThreshold())
	pricing := engine.NewPostProcessor(eval, o.log).Run(composed, pools, req.StartDate, req.EndDate)
	itins := engine.NewRanker(eval, pools.Pricing).Precompute(composed, pools.Flights)
	metrics.ItinerariesComposed.Observe(float64(len(itins)))

	rec := &cache.RawRecord{
		Itineraries:        itins,
		Flights:            pools.Flights,
		Pricing:            pricing,
		RouteStructures:    validRoutes,
		RateLimitRemaining: fanout.MinRateLimitRemaining,
		RateLimitReset:     fanout.MinRateLimitReset,
		UpstreamRequests:   fanout.TotalUpstreamRequests,
	}

	// Bookkeeping after the heavy lifting; both are best-effort.
	o.settleCredential(ctx, proKey, fanout)
	o.recordMetrics(ctx, req, fanout.TotalUpstreamRequests)

	return rec, nil
}

// compose runs the composer per route, in parallel when the route count
// crosses the configured threshold. Each worker buckets into a local set
// and the sets merge afterwards; UUID determinism makes the merge safe.
func (o *Orchestrator) compose(ctx context.Context, routes []model.RouteStructure, pools *engine.Pools, connIdx *engine.ConnectionIndex) engine.RouteItineraries {
	composer := engine.NewComposer(pools.Segments, connIdx, o.cities)

	composeOne := func(route model.RouteStructure) engine.RouteItineraries {
		local := engine.RouteItineraries{}
		for date, paths := range composer.ComposeRoute(route) {
			for _, path := range paths {
				flights, ok := engine.ResolveFlights(path, pools.Flights)
				if !ok {
					continue
				}
				local.Bucket(engine.DeriveRouteKey(flights, o.cities), date, path)
			}
		}
		return local
	}

	merged := engine.RouteItineraries{}

	if len(routes) <= o.cfg.ParallelRouteThreshold {
		for _, route := range routes {
			merged.Merge(composeOne(route))
		}
		return merged
	}

	tasks := make([]pool.Task[engine.RouteItineraries], len(routes))
	for i, route := range routes {
		route := route
		tasks[i] = func(context.Context) (engine.RouteItineraries, error) {
			return composeOne(route), nil
		}
	}
	results, err := pool.Run(ctx, tasks, o.cfg.ParallelRouteThreshold)
	if err != nil {
		// Only cancellation reaches here; partial results are discarded.
		o.log.Warnw("parallel composition aborted", "err", err)
		return merged
	}
	for _, local := range results {
		merged.Merge(local)
	}
	return merged
}

// respond ranks the raw record under the request's filter parameters,
// trims the flight and pricing maps to the returned page, and stores the
// exact response in the filtered tier.
func (o *Orchestrator) respond(ctx context.Context, rec *cache.RawRecord, fp model.FilterParams, filteredKey string) *model.BuildResponse {
	page, total, meta := engine.Apply(rec.Itineraries, fp)

	flights := make(map[string]*model.Flight)
	pricing := make(map[string]*model.PricingEntry)
	for i := range page {
		for _, id := range page[i].UUIDs {
			if f, ok := rec.Flights[id]; ok {
				flights[id] = f
			}
		}
		for _, pid := range page[i].PricingIDs {
			if e, ok := rec.Pricing[pid]; ok {
				pricing[pid] = e
			}
		}
	}
	if len(pricing) == 0 {
		pricing = nil
	}

	resp := &model.BuildResponse{
		Itineraries:               page,
		Flights:                   flights,
		Pricing:                   pricing,
		Total:                     total,
		Page:                      fp.Page,
		PageSize:                  fp.PageSize,
		MinRateLimitRemaining:     rec.RateLimitRemaining,
		MinRateLimitReset:         rec.RateLimitReset,
		TotalUpstreamHTTPRequests: rec.UpstreamRequests,
		FilterMetadata:            meta,
	}

	o.store.SetFiltered(ctx, filteredKey, resp)
	return resp
}

// settleCredential writes the provider-reported remaining quota back to
// pro_key with a compare-and-set; a lost race means a concurrent request
// already wrote a fresher value.
func (o *Orchestrator) settleCredential(ctx context.Context, pk *model.ProKey, fanout *fetch.FanOutResult) {
	if fanout.MinRateLimitRemaining < 0 {
		return
	}
	applied, err := o.proKeys.UpdateRemaining(ctx, pk.Key, pk.Remaining, fanout.MinRateLimitRemaining)
	if err != nil {
		o.log.Warnw("credential update failed", "err", err)
		return
	}
	if !applied {
		o.log.Debugw("credential update lost CAS race", "key", pk.Key)
	}
}

// recordMetrics bumps the route_metrics counters; failures only log.
func (o *Orchestrator) recordMetrics(ctx context.Context, req *model.BuildRequest, upstreamRequests int) {
	routeKey := req.Origin + "-" + req.Destination
	if err := o.routeMetrics.RecordSearch(ctx, routeKey, upstreamRequests); err != nil {
		o.log.Warnw("route metrics update failed", "routeKey", routeKey, "err", err)
	}
}
