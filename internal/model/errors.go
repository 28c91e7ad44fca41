package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ─── Error kinds ────────────────────────────────────────────
//
// Failure policy: local recovery for anything non-critical to
// correctness (KV, telemetry, reliability-table staleness, partial
// availability); request-fatal for input validity, route enumeration,
// credential acquisition, and unrecoverable upstream outages.

var (
	// ErrNoRoutes is returned when the route-topology service produces
	// zero candidate routes. Mapped to 404.
	ErrNoRoutes = errors.New("no eligible routes between origin and destination")

	// ErrUpstreamUnavailable covers route-topology 4xx/5xx and network
	// failures. Mapped to 500.
	ErrUpstreamUnavailable = errors.New("upstream route service unavailable")

	// ErrCredentialExhausted is returned when no pro_key row is
	// available. Mapped to 500.
	ErrCredentialExhausted = errors.New("no provider credential available")
)

// FieldErrors holds one message per offending request field.
type FieldErrors map[string]string

// InvalidInputError is a schema/validation failure. Mapped to 400 with
// per-field details.
type InvalidInputError struct {
	Details FieldErrors
}

func (e *InvalidInputError) Error() string {
	fields := make([]string, 0, len(e.Details))
	for f := range e.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid input: " + strings.Join(fields, ", ")
}

// RateLimitedError is returned by the rate-limit gate. Mapped to 429
// with a Retry-After hint.
type RateLimitedError struct {
	RetryAfterSeconds int
	Reason            string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %ds)", e.Reason, e.RetryAfterSeconds)
}
