// Package cache is the compressed Redis facade for the engine's three
// key families:
//
//	build-itins:<origin>:<destination>:<sha256(core)>          raw results
//	<raw-key>:<sha256(filter)>                                 filtered pages
//	availability:<sha256(params)>                              fetcher subqueries
//
// Caches are best-effort: a read failure behaves like a miss and a write
// failure is logged and swallowed. The engine must produce correct
// results with Redis completely absent.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

// DefaultTTL applies to every key family.
const DefaultTTL = 30 * time.Minute

// ErrMiss is returned when the key is absent (or Redis misbehaved and we
// treat the read as a miss).
var ErrMiss = errors.New("cache: miss")

// RawRecord is the value stored under the raw key family: the full
// post-processed result set before any filter/sort/paginate pass.
type RawRecord struct {
	Itineraries     []model.OptimizedItinerary      `json:"itineraries"`
	Flights         map[string]*model.Flight        `json:"flights"`
	Pricing         map[string]*model.PricingEntry  `json:"pricing,omitempty"`
	RouteStructures []model.RouteStructure          `json:"routeStructures"`

	RateLimitRemaining int `json:"rateLimitRemaining"`
	RateLimitReset     int `json:"rateLimitReset"`
	UpstreamRequests   int `json:"upstreamRequests"`
}

// Store wraps a Redis client with compression and key derivation.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
	log *zap.SugaredLogger
}

// NewStore creates a cache store. A zero ttl falls back to DefaultTTL.
func NewStore(rdb redis.Cmdable, ttl time.Duration, log *zap.SugaredLogger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, log: log.Named("cache")}
}

// ─── Key derivation ─────────────────────────────────────────

// RawKey builds the raw-family key from origin/destination and the core
// search parameters.
func RawKey(origin, destination string, core any) string {
	return fmt.Sprintf("build-itins:%s:%s:%s", origin, destination, paramsHash(core))
}

// FilteredKey derives the filtered-family key from a raw key and the
// filter parameters.
func FilteredKey(rawKey string, filter any) string {
	return rawKey + ":" + paramsHash(filter)
}

// AvailabilityKey builds the subquery-family key from the provider call
// parameters.
func AvailabilityKey(params any) string {
	return "availability:" + paramsHash(params)
}

func paramsHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Marshal of our own param structs cannot fail in practice.
		raw = []byte(fmt.Sprintf("%+v", v))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ─── Raw family ─────────────────────────────────────────────

// GetRaw fetches and decodes a raw record. Returns ErrMiss when absent
// or unreadable.
func (s *Store) GetRaw(ctx context.Context, key string) (*RawRecord, error) {
	var rec RawRecord
	if err := s.get(ctx, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetRaw stores a raw record. Failures are logged, never returned.
func (s *Store) SetRaw(ctx context.Context, key string, rec *RawRecord) {
	s.set(ctx, key, rec)
}

// ─── Filtered family ────────────────────────────────────────

// GetFiltered fetches the exact response object previously returned for
// this raw+filter combination.
func (s *Store) GetFiltered(ctx context.Context, key string) (*model.BuildResponse, error) {
	var resp model.BuildResponse
	if err := s.get(ctx, key, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetFiltered stores a response under the filtered key.
func (s *Store) SetFiltered(ctx context.Context, key string, resp *model.BuildResponse) {
	s.set(ctx, key, resp)
}

// ─── Availability subquery family ───────────────────────────

// GetAvailability decodes a cached subquery result into out.
func (s *Store) GetAvailability(ctx context.Context, key string, out any) error {
	return s.get(ctx, key, out)
}

// SetAvailability stores a subquery result.
func (s *Store) SetAvailability(ctx context.Context, key string, v any) {
	s.set(ctx, key, v)
}

// ─── Compressed get/set ─────────────────────────────────────

func (s *Store) get(ctx context.Context, key string, out any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		s.log.Warnw("read failed, treating as miss", "key", key, "err", err)
		return ErrMiss
	}

	decoded, err := inflate(raw)
	if err != nil {
		s.log.Warnw("corrupt cached blob, treating as miss", "key", key, "err", err)
		return ErrMiss
	}
	if err := json.Unmarshal(decoded, out); err != nil {
		s.log.Warnw("undecodable cached blob, treating as miss", "key", key, "err", err)
		return ErrMiss
	}
	return nil
}

func (s *Store) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warnw("marshal failed, skipping write", "key", key, "err", err)
		return
	}
	compressed, err := deflate(raw)
	if err != nil {
		s.log.Warnw("compress failed, skipping write", "key", key, "err", err)
		return
	}
	if err := s.rdb.Set(ctx, key, compressed, s.ttl).Err(); err != nil {
		s.log.Warnw("write failed", "key", key, "err", err)
	}
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	return io.ReadAll(r)
}
