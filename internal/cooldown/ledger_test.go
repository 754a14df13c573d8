package cooldown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestReserveTwiceInSuccession(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(1_700_000_000, 0)

	first, err := ledger.Reserve(context.Background(), "u1", ActionCover, 5*time.Minute, now)
	if err != nil || !first.Allowed {
		t.Fatalf("expected first reservation allowed, got %+v err=%v", first, err)
	}
	second, err := ledger.Reserve(context.Background(), "u1", ActionCover, 5*time.Minute, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Allowed {
		t.Fatalf("expected second reservation rejected")
	}
	if second.Remaining != 5*time.Minute {
		t.Fatalf("expected full window remaining, got %s", second.Remaining)
	}
}

func TestReserveRemainingAndExpiry(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(0, 0)
	ctx := context.Background()

	ledger.Reserve(ctx, "u1", ActionWork, time.Hour, now)
	res, _ := ledger.Reserve(ctx, "u1", ActionWork, time.Hour, now.Add(20*time.Minute))
	if res.Allowed || res.Remaining != 40*time.Minute {
		t.Fatalf("expected 40m remaining, got %+v", res)
	}
	res, _ = ledger.Reserve(ctx, "u1", ActionWork, time.Hour, now.Add(time.Hour))
	if !res.Allowed {
		t.Fatalf("expected reservation allowed once window elapsed")
	}
}

func TestActionsAreIndependent(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(0, 0)
	ctx := context.Background()

	ledger.Reserve(ctx, "u1", ActionDaily, 24*time.Hour, now)
	res, _ := ledger.Reserve(ctx, "u1", ActionWork, time.Hour, now)
	if !res.Allowed {
		t.Fatalf("work should not be blocked by daily")
	}
	res, _ = ledger.Reserve(ctx, "u2", ActionDaily, 24*time.Hour, now)
	if !res.Allowed {
		t.Fatalf("other users should not be blocked")
	}
}

func TestInvalidWindow(t *testing.T) {
	ledger := NewMemory()
	if _, err := ledger.Reserve(context.Background(), "u1", ActionHelp, 0, time.Now()); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(0, 0)
	ctx := context.Background()

	ledger.Reserve(ctx, "u1", ActionCover, 5*time.Minute, now)
	if err := ledger.Release(ctx, "u1", ActionCover); err != nil {
		t.Fatalf("release: %v", err)
	}
	res, _ := ledger.Reserve(ctx, "u1", ActionCover, 5*time.Minute, now)
	if !res.Allowed {
		t.Fatalf("expected reservation allowed after release")
	}
}

func TestConcurrentReserveAllowsOne(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(0, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Reserve(context.Background(), "u1", ActionCover, time.Minute, now)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 1 {
		t.Fatalf("expected exactly one allowed reservation, got %d", allowed)
	}
}

func TestSweep(t *testing.T) {
	ledger := NewMemory()
	now := time.Unix(0, 0)
	ctx := context.Background()

	ledger.Reserve(ctx, "u1", ActionHelp, 10*time.Second, now)
	ledger.Reserve(ctx, "u2", ActionDaily, 24*time.Hour, now)
	if removed := ledger.Sweep(now.Add(time.Minute)); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if ledger.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", ledger.Len())
	}
	if remaining := ledger.Remaining("u2", ActionDaily, now.Add(time.Hour)); remaining != 23*time.Hour {
		t.Fatalf("unexpected remaining %s", remaining)
	}
}
