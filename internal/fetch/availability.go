package fetch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

// AvailabilityQuery is the body of one availability-v2 subquery: a
// compact route group ("ORIG1/ORIG2-DEST1/DEST2") plus the common
// filters shared across the whole fan-out.
type AvailabilityQuery struct {
	RouteID   string `json:"routeId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Cabin     string `json:"cabin,omitempty"`
	Carriers  string `json:"carriers,omitempty"`
	Seats     int    `json:"seats,omitempty"`
	United    bool   `json:"united,omitempty"`
	BinBin    bool   `json:"binbin,omitempty"`
	MaxStop   int    `json:"maxStop,omitempty"`
}

// availabilityBody is the provider's response payload.
type availabilityBody struct {
	Groups           []*model.Group        `json:"groups"`
	Pricing          []*model.PricingEntry `json:"pricing,omitempty"`
	UpstreamRequests int                   `json:"upstreamHttpRequests"`
}

// SubqueryResult is the outcome of one subquery, errored or not.
// RateLimitRemaining/Reset are -1 when the provider was not consulted
// (cache hit or error before headers).
type SubqueryResult struct {
	Query   AvailabilityQuery     `json:"query"`
	Groups  []*model.Group        `json:"groups"`
	Pricing []*model.PricingEntry `json:"pricing,omitempty"`

	RateLimitRemaining int  `json:"rateLimitRemaining"`
	RateLimitReset     int  `json:"rateLimitReset"`
	UpstreamRequests   int  `json:"upstreamRequests"`
	Errored            bool `json:"errored"`
	FromCache          bool `json:"fromCache"`
}

// Provider abstracts the availability upstream so the fetcher can be
// tested with a fake.
type Provider interface {
	Availability(ctx context.Context, q AvailabilityQuery, proKey string) (*SubqueryResult, error)
}

// AvailabilityClient is the production Provider: resty transport behind
// a circuit breaker. An open breaker fails subqueries fast, which the
// fetcher then demotes to empty result sets.
type AvailabilityClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.SugaredLogger
}

// NewAvailabilityClient creates a client for the given base URL.
func NewAvailabilityClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *AvailabilityClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "availability-v2",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &AvailabilityClient{http: client, breaker: breaker, log: log.Named("availability")}
}

// Availability runs one availability-v2 call and parses the rate-limit
// headers. A 429 is treated like any other provider error: the caller
// degrades the subquery to an empty set rather than failing the request.
func (c *AvailabilityClient) Availability(ctx context.Context, q AvailabilityQuery, proKey string) (*SubqueryResult, error) {
	v, err := c.breaker.Execute(func() (any, error) {
		var body availabilityBody

		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Pro-Key", proKey).
			SetBody(q).
			SetResult(&body).
			Post("/availability-v2")
		if err != nil {
			return nil, err
		}

		result := &SubqueryResult{
			Query:              q,
			Groups:             body.Groups,
			Pricing:            body.Pricing,
			RateLimitRemaining: headerInt(resp, "x-ratelimit-remaining"),
			RateLimitReset:     headerInt(resp, "x-ratelimit-reset"),
			UpstreamRequests:   body.UpstreamRequests,
		}

		if resp.IsError() {
			// Headers still carry quota info on 429; keep them so the
			// merged minimum reflects the exhausted budget.
			return result, fmt.Errorf("availability-v2 %s: status %d", q.RouteID, resp.StatusCode())
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubqueryResult), nil
}

func headerInt(resp *resty.Response, name string) int {
	raw := resp.Header().Get(name)
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
