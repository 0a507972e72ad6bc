package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoExecutesOnce(t *testing.T) {
	g := New[string]()

	var calls int32
	start := make(chan struct{})

	const n = 25
	var wg sync.WaitGroup
	results := make([]string, n)
	shares := make([]bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, shared, err := g.Do(context.Background(), "k", func() (string, error) {
				atomic.AddInt32(&calls, 1)
				<-start
				return "value", nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
			}
			results[i] = v
			shares[i] = shared
		}(i)
	}

	// Give the goroutines time to pile up behind the owner.
	time.Sleep(50 * time.Millisecond)
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 execution, got %d", got)
	}

	owners := 0
	for i := 0; i < n; i++ {
		if results[i] != "value" {
			t.Errorf("Caller %d got %q, want %q", i, results[i], "value")
		}
		if !shares[i] {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("Expected exactly 1 owner, got %d", owners)
	}
}

func TestDoCachesCompletedCall(t *testing.T) {
	g := New[int]()

	var calls int
	fn := func() (int, error) {
		calls++
		return 42, nil
	}

	if v, _, _ := g.Do(context.Background(), "k", fn); v != 42 {
		t.Fatalf("First Do = %d, want 42", v)
	}

	// Completed calls are retained until Forget.
	v, shared, err := g.Do(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("Second Do returned error: %v", err)
	}
	if v != 42 || !shared {
		t.Errorf("Second Do = (%d, shared=%v), want (42, true)", v, shared)
	}
	if calls != 1 {
		t.Errorf("fn executed %d times, want 1", calls)
	}
}

func TestDoErrorNotCached(t *testing.T) {
	g := New[string]()

	boom := errors.New("boom")
	calls := 0
	_, _, err := g.Do(context.Background(), "k", func() (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do error = %v, want %v", err, boom)
	}

	v, shared, err := g.Do(context.Background(), "k", func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || v != "ok" || shared {
		t.Errorf("Do after failure = (%q, shared=%v, err=%v), want retry", v, shared, err)
	}
	if calls != 2 {
		t.Errorf("fn executed %d times, want 2", calls)
	}
}

func TestDoSharedError(t *testing.T) {
	g := New[string]()

	boom := errors.New("boom")
	start := make(chan struct{})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = g.Do(context.Background(), "k", func() (string, error) {
				<-start
				return "", boom
			})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(start)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("Waiter %d got %v, want %v", i, err, boom)
		}
	}
}

func TestForgetForcesReexecution(t *testing.T) {
	g := New[int]()

	calls := 0
	fn := func() (int, error) {
		calls++
		return calls, nil
	}

	g.Do(context.Background(), "k", fn)
	g.Forget("k")

	v, shared, _ := g.Do(context.Background(), "k", fn)
	if v != 2 || shared {
		t.Errorf("Do after Forget = (%d, shared=%v), want (2, false)", v, shared)
	}
}

func TestWaiterCancellation(t *testing.T) {
	g := New[string]()

	release := make(chan struct{})
	go g.Do(context.Background(), "k", func() (string, error) {
		<-release
		return "late", nil
	})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := g.Do(ctx, "k", func() (string, error) {
		t.Error("Cancelled waiter must not execute fn")
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Cancelled waiter error = %v, want context.Canceled", err)
	}

	// The owner is unaffected by the waiter's cancellation.
	close(release)
	v, _, err := g.Do(context.Background(), "k", func() (string, error) {
		return "", errors.New("should not run")
	})
	if err != nil || v != "late" {
		t.Errorf("Owner outcome = (%q, %v), want (\"late\", nil)", v, err)
	}
}
