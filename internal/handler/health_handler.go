package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	pkgcache "github.com/openmiles/awardengine/pkg/cache"
	"github.com/openmiles/awardengine/pkg/db"
)

// HealthHandler reports liveness plus dependency reachability.
type HealthHandler struct {
	pg  *pgxpool.Pool
	rdb *redis.Client
}

// NewHealthHandler creates the handler.
func NewHealthHandler(pg *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pg: pg, rdb: rdb}
}

// Health pings Postgres and Redis. Redis being down degrades the engine
// but does not stop it, so it reports as a warning, not a failure.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok", "postgres": "ok", "redis": "ok"}

	if err := db.HealthCheck(r.Context(), h.pg); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["postgres"] = err.Error()
	}
	if err := pkgcache.HealthCheck(r.Context(), h.rdb); err != nil {
		body["redis"] = err.Error()
		if body["status"] == "ok" {
			body["status"] = "warning"
		}
	}

	writeJSON(w, status, body)
}
