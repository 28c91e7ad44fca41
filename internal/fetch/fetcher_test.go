package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/cache"
	"github.com/openmiles/awardengine/internal/model"
)

// fakeRedis backs the subquery cache in tests. Only Get and Set are
// implemented; the embedded interface panics on anything else, which is
// exactly what we want.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if v, ok := f.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if b, ok := value.([]byte); ok {
		f.data[key] = string(b)
	}
	cmd.SetVal("OK")
	return cmd
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(q AvailabilityQuery) (*SubqueryResult, error)
}

func (p *fakeProvider) Availability(_ context.Context, q AvailabilityQuery, _ string) (*SubqueryResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(q)
}

func testStore() *cache.Store {
	return cache.NewStore(newFakeRedis(), 0, zap.NewNop().Sugar())
}

func query(routeID string) AvailabilityQuery {
	return AvailabilityQuery{RouteID: routeID, StartDate: "2025-03-01", EndDate: "2025-03-03"}
}

func TestFanOut_MergesQuotaMinima(t *testing.T) {
	provider := &fakeProvider{fn: func(q AvailabilityQuery) (*SubqueryResult, error) {
		switch q.RouteID {
		case "NRT-LAX":
			return &SubqueryResult{Query: q, RateLimitRemaining: 50, RateLimitReset: 120, UpstreamRequests: 3}, nil
		case "NRT-SFO":
			return &SubqueryResult{Query: q, RateLimitRemaining: 30, RateLimitReset: 300, UpstreamRequests: 2}, nil
		default:
			// Unknown quota, e.g. headers missing.
			return &SubqueryResult{Query: q, RateLimitRemaining: -1, RateLimitReset: -1, UpstreamRequests: 1}, nil
		}
	}}

	f := NewFetcher(provider, testStore(), 4, zap.NewNop().Sugar())
	out, err := f.FanOut(context.Background(), []AvailabilityQuery{
		query("NRT-LAX"), query("NRT-SFO"), query("NRT-SEA"),
	}, "key1")
	if err != nil {
		t.Fatalf("FanOut returned error: %v", err)
	}

	if out.MinRateLimitRemaining != 30 {
		t.Errorf("MinRateLimitRemaining = %d, want 30", out.MinRateLimitRemaining)
	}
	if out.MinRateLimitReset != 120 {
		t.Errorf("MinRateLimitReset = %d, want 120", out.MinRateLimitReset)
	}
	if out.TotalUpstreamRequests != 6 {
		t.Errorf("TotalUpstreamRequests = %d, want 6", out.TotalUpstreamRequests)
	}
	if len(out.Results) != 3 || out.Results[0].Query.RouteID != "NRT-LAX" {
		t.Errorf("results not in submission order: %+v", out.Results)
	}
}

func TestFanOut_AllQuotasUnknown(t *testing.T) {
	provider := &fakeProvider{fn: func(q AvailabilityQuery) (*SubqueryResult, error) {
		return &SubqueryResult{Query: q, RateLimitRemaining: -1, RateLimitReset: -1}, nil
	}}

	f := NewFetcher(provider, testStore(), 2, zap.NewNop().Sugar())
	out, err := f.FanOut(context.Background(), []AvailabilityQuery{query("NRT-LAX")}, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if out.MinRateLimitRemaining != -1 || out.MinRateLimitReset != -1 {
		t.Errorf("quota = (%d, %d), want (-1, -1)", out.MinRateLimitRemaining, out.MinRateLimitReset)
	}
}

func TestFanOut_DemotesProviderErrors(t *testing.T) {
	provider := &fakeProvider{fn: func(q AvailabilityQuery) (*SubqueryResult, error) {
		if q.RouteID == "NRT-SFO" {
			return nil, errors.New("upstream 429")
		}
		return &SubqueryResult{
			Query:              q,
			Groups:             []*model.Group{{Origin: "NRT", Destination: "LAX", Date: "2025-03-01"}},
			RateLimitRemaining: 10,
			RateLimitReset:     60,
			UpstreamRequests:   1,
		}, nil
	}}

	f := NewFetcher(provider, testStore(), 4, zap.NewNop().Sugar())
	out, err := f.FanOut(context.Background(), []AvailabilityQuery{
		query("NRT-LAX"), query("NRT-SFO"),
	}, "key1")
	if err != nil {
		t.Fatalf("FanOut must not fail on a provider error, got %v", err)
	}

	if out.ErroredSubqueries != 1 {
		t.Errorf("ErroredSubqueries = %d, want 1", out.ErroredSubqueries)
	}
	failed := out.Results[1]
	if !failed.Errored || len(failed.Groups) != 0 {
		t.Errorf("failed subquery = %+v, want errored and empty", failed)
	}
	// The healthy subquery still contributes its quota.
	if out.MinRateLimitRemaining != 10 {
		t.Errorf("MinRateLimitRemaining = %d, want 10", out.MinRateLimitRemaining)
	}
}

func TestFanOut_SecondRunServedFromCache(t *testing.T) {
	provider := &fakeProvider{fn: func(q AvailabilityQuery) (*SubqueryResult, error) {
		return &SubqueryResult{
			Query:              q,
			Groups:             []*model.Group{{Origin: "NRT", Destination: "LAX", Date: "2025-03-01"}},
			RateLimitRemaining: 40,
			RateLimitReset:     60,
			UpstreamRequests:   2,
		}, nil
	}}

	store := testStore()
	f := NewFetcher(provider, store, 2, zap.NewNop().Sugar())
	queries := []AvailabilityQuery{query("NRT-LAX")}

	if _, err := f.FanOut(context.Background(), queries, "key1"); err != nil {
		t.Fatal(err)
	}
	out, err := f.FanOut(context.Background(), queries, "key1")
	if err != nil {
		t.Fatal(err)
	}

	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second run cached)", provider.calls)
	}
	r := out.Results[0]
	if !r.FromCache {
		t.Error("FromCache = false on second run")
	}
	if len(r.Groups) != 1 {
		t.Errorf("cached groups = %d, want 1", len(r.Groups))
	}
	// Cache hits carry no fresh quota and no upstream cost.
	if r.RateLimitRemaining != -1 || r.UpstreamRequests != 0 {
		t.Errorf("cached quota = (%d, %d), want (-1, 0)", r.RateLimitRemaining, r.UpstreamRequests)
	}
	if out.TotalUpstreamRequests != 0 {
		t.Errorf("TotalUpstreamRequests = %d, want 0", out.TotalUpstreamRequests)
	}
}

func TestFanOut_EmptyPlan(t *testing.T) {
	f := NewFetcher(&fakeProvider{fn: nil}, testStore(), 2, zap.NewNop().Sugar())
	out, err := f.FanOut(context.Background(), nil, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 || out.MinRateLimitRemaining != -1 {
		t.Errorf("empty fan-out = %+v", out)
	}
}
