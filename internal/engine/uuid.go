// Package engine is the itinerary composition core: segment pooling,
// connection indexing, the stack-based composer, reliability filtering,
// post-processing and ranking. Everything here is pure computation over
// request-scoped state; the only process-wide piece is the bounded UUID
// digest cache.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// uuidCacheSize bounds the digest memo. At ~100 bytes per entry this is
// a few megabytes of steady-state memory.
const uuidCacheSize = 50_000

// uuidLen is the digest prefix length in hex characters.
const uuidLen = 16

var uuidCache, _ = lru.New[string, string](uuidCacheSize)

// FlightUUID returns the short deterministic digest identifying a
// flight: sha256 over (flight number, departs-at, arrives-at), truncated.
// Mutable attributes (seat counts, fares) never participate, so the same
// physical flight keeps its identity across requests and cache entries.
func FlightUUID(flightNumber string, departsAt, arrivesAt time.Time) string {
	key := flightNumber + "|" +
		strconv.FormatInt(departsAt.UnixMilli(), 10) + "|" +
		strconv.FormatInt(arrivesAt.UnixMilli(), 10)

	if v, ok := uuidCache.Get(key); ok {
		return v
	}

	sum := sha256.Sum256([]byte(key))
	uuid := hex.EncodeToString(sum[:])[:uuidLen]
	uuidCache.Add(key, uuid)
	return uuid
}
