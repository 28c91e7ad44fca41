package reliability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	fetches int32
	table   model.ReliabilityTable
	err     error
}

func (s *fakeSource) FetchRules(context.Context) (model.ReliabilityTable, error) {
	atomic.AddInt32(&s.fetches, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestTable_FetchesOnceWithinTTL(t *testing.T) {
	src := &fakeSource{table: model.ReliabilityTable{"AA": {Carrier: "AA", MinCount: 5}}}
	c := NewCache(src, time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		table := c.Table(ctx)
		if table.Rule("AA").MinCount != 5 {
			t.Fatalf("call %d: wrong table %v", i, table)
		}
	}
	if n := atomic.LoadInt32(&src.fetches); n != 1 {
		t.Errorf("fetches = %d, want 1 inside TTL", n)
	}
}

func TestTable_ParallelCallersShareOneFetch(t *testing.T) {
	src := &fakeSource{table: model.ReliabilityTable{}}
	c := NewCache(src, time.Minute, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Table(context.Background())
		}()
	}
	wg.Wait()

	// Singleflight may admit a second fetch on unlucky scheduling, but
	// never one per caller.
	if n := atomic.LoadInt32(&src.fetches); n > 2 {
		t.Errorf("fetches = %d for 16 parallel callers, want <= 2", n)
	}
}

func TestTable_ServesStaleOnRefreshFailure(t *testing.T) {
	src := &fakeSource{table: model.ReliabilityTable{"NH": {Carrier: "NH", MinCount: 4}}}
	c := NewCache(src, 10*time.Millisecond, zap.NewNop().Sugar())
	ctx := context.Background()

	if got := c.Table(ctx).Rule("NH").MinCount; got != 4 {
		t.Fatalf("initial table MinCount = %d, want 4", got)
	}

	src.setErr(errors.New("db down"))
	time.Sleep(30 * time.Millisecond) // let the TTL entry lapse

	if got := c.Table(ctx).Rule("NH").MinCount; got != 4 {
		t.Errorf("stale fallback MinCount = %d, want 4", got)
	}
}

func TestTable_EmptyWhenNeverFetched(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	c := NewCache(src, time.Minute, zap.NewNop().Sugar())

	table := c.Table(context.Background())
	// Empty table defaults every carrier to a single-seat minimum.
	if got := table.Rule("AA").MinCount; got != 1 {
		t.Errorf("default MinCount = %d, want 1", got)
	}
}
