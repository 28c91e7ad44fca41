// Package ratelimit enforces the per-client request policies in one
// pass: unique searches, total requests, and pagination bursts, plus the
// free-tier request-shape validations for callers without an API key.
//
// Counters live in Redis as atomic INCR + EXPIRE pairs — never
// read-modify-write — so concurrent requests from the same client are
// safe. Every counter is best-effort: Redis errors default to permit.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

// ─── Policies ───────────────────────────────────────────────

const (
	uniqueWindow      = 5 * time.Minute
	uniqueWindowLimit = 10
	uniqueDailyLimit  = 10

	totalWindow      = 5 * time.Minute
	totalWindowLimit = 200
	totalDailyLimit  = 2000

	paginationWindow = 3 * time.Second
	paginationLimit  = 1

	day = 24 * time.Hour
)

// Free-tier request-shape ceilings (no API key supplied).
const (
	FreeTierMaxDateSpanDays = 3
	FreeTierMaxStop         = 2
	FreeTierMaxCodeProduct  = 4
	FreeTierMaxPageSize     = 10
)

// Gate is the sliding-window rate limiter.
type Gate struct {
	rdb redis.Cmdable
	log *zap.SugaredLogger
}

// NewGate creates a gate backed by the given Redis client.
func NewGate(rdb redis.Cmdable, log *zap.SugaredLogger) *Gate {
	return &Gate{rdb: rdb, log: log.Named("ratelimit")}
}

// CoreTupleHash identifies a "unique search": sha256 over the core
// request tuple. Pagination and re-filtered requests share the hash of
// the search that seeded them.
func CoreTupleHash(req *model.BuildRequest) string {
	raw := fmt.Sprintf("%s|%s|%d|%s|%s",
		req.Origin, req.Destination, req.MaxStop, req.StartDate, req.EndDate)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Check runs the free-tier validations and all three counter policies.
// A violation returns *model.RateLimitedError; anything else permits.
func (g *Gate) Check(ctx context.Context, clientIP string, req *model.BuildRequest, fp *model.FilterParams) error {
	if !req.HasAPIKey() {
		if err := checkFreeTier(req, fp); err != nil {
			return err
		}
	}

	coreHash := CoreTupleHash(req)

	// ── Pagination bursts ───────────────────────────────
	if fp.IsPagination() {
		count, ok := g.bump(ctx, "rl:page:"+clientIP, paginationWindow)
		if ok && count > paginationLimit {
			return &model.RateLimitedError{
				RetryAfterSeconds: int(paginationWindow / time.Second),
				Reason:            "pagination limit exceeded: 1 request per 3 seconds",
			}
		}
	}

	// ── Total requests ──────────────────────────────────
	if count, ok := g.bump(ctx, "rl:total:5m:"+clientIP, totalWindow); ok && count > totalWindowLimit {
		return &model.RateLimitedError{
			RetryAfterSeconds: g.retryAfter(ctx, "rl:total:5m:"+clientIP, totalWindow),
			Reason:            fmt.Sprintf("total request limit exceeded: %d per 5 minutes", totalWindowLimit),
		}
	}
	if count, ok := g.bump(ctx, "rl:total:day:"+clientIP, day); ok && count > totalDailyLimit {
		return &model.RateLimitedError{
			RetryAfterSeconds: g.retryAfter(ctx, "rl:total:day:"+clientIP, day),
			Reason:            fmt.Sprintf("daily request limit exceeded: %d per day", totalDailyLimit),
		}
	}

	// ── Unique searches ─────────────────────────────────
	// Same-tuple repeats (pagination, re-filtering) are covered by the
	// total-request policy only: the unique counters move exclusively
	// when this core tuple has not been seen inside the window.
	firstSeen, ok := g.markSeen(ctx, "rl:seen:"+clientIP+":"+coreHash, uniqueWindow)
	if ok && firstSeen {
		if count, ok := g.bump(ctx, "rl:uniq:5m:"+clientIP, uniqueWindow); ok && count > uniqueWindowLimit {
			return &model.RateLimitedError{
				RetryAfterSeconds: g.retryAfter(ctx, "rl:uniq:5m:"+clientIP, uniqueWindow),
				Reason:            fmt.Sprintf("unique search limit exceeded: %d per 5 minutes", uniqueWindowLimit),
			}
		}
		if count, ok := g.bump(ctx, "rl:uniq:day:"+clientIP, day); ok && count > uniqueDailyLimit {
			return &model.RateLimitedError{
				RetryAfterSeconds: g.retryAfter(ctx, "rl:uniq:day:"+clientIP, day),
				Reason:            fmt.Sprintf("daily unique search limit exceeded: %d per day", uniqueDailyLimit),
			}
		}
	}

	return nil
}

// ─── Free tier ──────────────────────────────────────────────

func checkFreeTier(req *model.BuildRequest, fp *model.FilterParams) error {
	if span := req.DateSpanDays(); span > FreeTierMaxDateSpanDays {
		return &model.RateLimitedError{
			RetryAfterSeconds: 0,
			Reason:            fmt.Sprintf("free tier: date span must be at most %d days, got %d", FreeTierMaxDateSpanDays, span),
		}
	}
	if req.MaxStop > FreeTierMaxStop {
		return &model.RateLimitedError{
			RetryAfterSeconds: 0,
			Reason:            fmt.Sprintf("free tier: maxStop must be at most %d, got %d", FreeTierMaxStop, req.MaxStop),
		}
	}
	if product := len(req.OriginCodes()) * len(req.DestinationCodes()); product > FreeTierMaxCodeProduct {
		return &model.RateLimitedError{
			RetryAfterSeconds: 0,
			Reason:            fmt.Sprintf("free tier: origin x destination combinations must be at most %d, got %d", FreeTierMaxCodeProduct, product),
		}
	}
	if fp.PageSize > FreeTierMaxPageSize {
		return &model.RateLimitedError{
			RetryAfterSeconds: 0,
			Reason:            fmt.Sprintf("free tier: pageSize must be at most %d, got %d", FreeTierMaxPageSize, fp.PageSize),
		}
	}
	return nil
}

// ─── Redis primitives ───────────────────────────────────────

// bump atomically increments a counter, setting its expiry on first
// touch. ok=false signals a Redis failure (policy: permit).
func (g *Gate) bump(ctx context.Context, key string, window time.Duration) (int64, bool) {
	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		g.log.Warnw("counter increment failed, permitting", "key", key, "err", err)
		return 0, false
	}
	if count == 1 {
		if err := g.rdb.Expire(ctx, key, window).Err(); err != nil {
			g.log.Warnw("counter expire failed", "key", key, "err", err)
		}
	}
	return count, true
}

// markSeen records the core tuple with SET NX and reports whether this
// was the first sighting inside the window.
func (g *Gate) markSeen(ctx context.Context, key string, window time.Duration) (first, ok bool) {
	set, err := g.rdb.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		g.log.Warnw("seen-marker failed, permitting", "key", key, "err", err)
		return false, false
	}
	return set, true
}

// retryAfter reads the counter's remaining TTL; falls back to the full
// window when unreadable.
func (g *Gate) retryAfter(ctx context.Context, key string, window time.Duration) int {
	ttl, err := g.rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return int(window / time.Second)
	}
	return int(ttl / time.Second)
}
