package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_PreservesSubmissionOrder(t *testing.T) {
	tasks := make([]Task[int], 20)
	for i := range tasks {
		i := i
		tasks[i] = func(context.Context) (int, error) {
			// Reverse the natural completion order.
			time.Sleep(time.Duration(20-i) * time.Millisecond)
			return i * 10, nil
		}
	}

	results, err := Run(context.Background(), tasks, 20)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, got := range results {
		if got != i*10 {
			t.Errorf("results[%d] = %d, want %d", i, got, i*10)
		}
	}
}

func TestRun_RespectsLimit(t *testing.T) {
	const limit = 3
	var inFlight, peak int64

	tasks := make([]Task[struct{}], 12)
	for i := range tasks {
		tasks[i] = func(context.Context) (struct{}, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return struct{}{}, nil
		}
	}

	if _, err := Run(context.Background(), tasks, limit); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if p := atomic.LoadInt64(&peak); p > limit {
		t.Errorf("peak concurrency = %d, want <= %d", p, limit)
	}
}

func TestRun_FirstErrorCancelsRest(t *testing.T) {
	boom := errors.New("boom")
	var started int64

	tasks := make([]Task[int], 50)
	tasks[0] = func(context.Context) (int, error) {
		return 0, boom
	}
	for i := 1; i < len(tasks); i++ {
		tasks[i] = func(ctx context.Context) (int, error) {
			atomic.AddInt64(&started, 1)
			<-ctx.Done()
			return 0, ctx.Err()
		}
	}

	_, err := Run(context.Background(), tasks, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	// With limit 2 and an immediate failure, most tasks never start.
	if s := atomic.LoadInt64(&started); s == 49 {
		t.Errorf("all remaining tasks started despite cancellation")
	}
}

func TestRun_RejectsBadLimit(t *testing.T) {
	_, err := Run(context.Background(), []Task[int]{}, 0)
	if err == nil {
		t.Fatal("Run(limit=0) = nil error, want error")
	}
}

func TestRun_EmptyTasks(t *testing.T) {
	results, err := Run(context.Background(), []Task[string]{}, 4)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}
