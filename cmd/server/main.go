package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/config"
	"github.com/openmiles/awardengine/internal/cache"
	"github.com/openmiles/awardengine/internal/fetch"
	"github.com/openmiles/awardengine/internal/handler"
	"github.com/openmiles/awardengine/internal/middleware"
	"github.com/openmiles/awardengine/internal/ratelimit"
	"github.com/openmiles/awardengine/internal/reliability"
	"github.com/openmiles/awardengine/internal/repository"
	"github.com/openmiles/awardengine/internal/service"
	pkgcache "github.com/openmiles/awardengine/pkg/cache"
	"github.com/openmiles/awardengine/pkg/citygroup"
	"github.com/openmiles/awardengine/pkg/db"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config load failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Backing stores ──────────────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalw("postgres connect failed", "err", err)
	}
	defer pgPool.Close()

	rdb, err := pkgcache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalw("redis connect failed", "err", err)
	}
	defer rdb.Close()

	cities, err := citygroup.Load(cfg.Engine.CityGroupsPath)
	if err != nil {
		log.Fatalw("city groups load failed", "path", cfg.Engine.CityGroupsPath, "err", err)
	}

	// ── Components ──────────────────────────────────────
	store := cache.NewStore(rdb, cfg.Engine.CacheTTL, log)
	gate := ratelimit.NewGate(rdb, log)

	relRepo := repository.NewReliabilityRepository(pgPool)
	relCache := reliability.NewCache(relRepo, cfg.Engine.ReliabilityTTL, log)

	routeClient := fetch.NewRouteClient(cfg.Upstream.RouteBaseURL, cfg.Upstream.RequestTimeout, log)
	availClient := fetch.NewAvailabilityClient(cfg.Upstream.AvailabilityBaseURL, cfg.Upstream.RequestTimeout, log)
	fetcher := fetch.NewFetcher(availClient, store, cfg.Upstream.FetchConcurrency, log)

	orchestrator := service.NewOrchestrator(
		store,
		gate,
		relCache,
		routeClient,
		fetcher,
		repository.NewProKeyRepository(pgPool),
		repository.NewMetricsRepository(pgPool),
		cities,
		cfg.Engine,
		log,
	)

	// ── HTTP ────────────────────────────────────────────
	itineraries := handler.NewItineraryHandler(orchestrator, log)
	health := handler.NewHealthHandler(pgPool, rdb)

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)

	r.HandleFunc("/build-itineraries", itineraries.BuildItineraries).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infow("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "err", err)
	}
	log.Info("server stopped")
}
