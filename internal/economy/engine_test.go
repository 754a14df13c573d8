package economy

import (
	"context"
	"errors"
	"testing"
	"time"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.DefaultConfig()
	engine := NewEngine(store, cooldown.NewMemory(), cfg.Economy, cfg.Cooldowns, zap.NewNop())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	engine.WithClock(clock)
	engine.intn = func(n int) int { return n - 1 }
	return engine, clock
}

func TestStartingBalance(t *testing.T) {
	engine, _ := newEngine(t)
	balance, err := engine.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("expected starting balance 100, got %d", balance)
	}
}

func TestDailyCooldown(t *testing.T) {
	engine, clock := newEngine(t)
	ctx := context.Background()

	claim, err := engine.Daily(ctx, "u1")
	if err != nil || !claim.Allowed {
		t.Fatalf("expected first daily allowed, got %+v err=%v", claim, err)
	}
	if claim.Amount != 200 || claim.Balance != 300 {
		t.Fatalf("unexpected claim %+v", claim)
	}

	clock.now = clock.now.Add(23 * time.Hour)
	claim, err = engine.Daily(ctx, "u1")
	if err != nil || claim.Allowed {
		t.Fatalf("expected daily on cooldown, got %+v err=%v", claim, err)
	}
	if claim.Remaining != time.Hour {
		t.Fatalf("expected 1h remaining, got %s", claim.Remaining)
	}

	clock.now = clock.now.Add(time.Hour)
	if claim, _ = engine.Daily(ctx, "u1"); !claim.Allowed {
		t.Fatalf("expected daily allowed after 24h")
	}
}

func TestWorkIndependentOfDaily(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	engine.Daily(ctx, "u1")
	claim, err := engine.Work(ctx, "u1")
	if err != nil || !claim.Allowed {
		t.Fatalf("expected work allowed, got %+v err=%v", claim, err)
	}
	if claim.Job != "Mechanic" || claim.Amount != 90 {
		t.Fatalf("unexpected job payout %+v", claim)
	}
	if claim, _ = engine.Work(ctx, "u1"); claim.Allowed || claim.Remaining != time.Hour {
		t.Fatalf("expected work cooldown of 1h, got %+v", claim)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if _, err := engine.Debit(ctx, "u1", 70); err != nil {
		t.Fatalf("debit: %v", err)
	}
	_, err := engine.Debit(ctx, "u1", 50)
	if !errors.Is(err, storage.ErrInsufficientFunds) || !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation insufficient funds, got %v", err)
	}
	balance, _ := engine.Balance(ctx, "u1")
	if balance != 30 {
		t.Fatalf("balance should stay 30, got %d", balance)
	}
}

func TestLevelProgress(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	var progress Progress
	for i := 0; i < 40; i++ {
		p, err := engine.AwardMessage(ctx, "u1")
		if err != nil {
			t.Fatalf("award: %v", err)
		}
		progress = p
	}
	if progress.XP != 120 || progress.Level != 2 || progress.Progress != 20 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	level, err := engine.Level(ctx, "u1")
	if err != nil || level != progress {
		t.Fatalf("level mismatch %+v vs %+v err=%v", level, progress, err)
	}
}

type brokenWallets struct{ Wallets }

func (brokenWallets) Credit(context.Context, string, int64, int64) (int64, error) {
	return 0, errors.New("disk full")
}

type stuckLedger struct{ *cooldown.Memory }

func (stuckLedger) Release(context.Context, string, cooldown.Action) error {
	return errors.New("redis down")
}

func TestFailedCreditLogsReleaseError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := config.DefaultConfig()
	engine := NewEngine(brokenWallets{}, stuckLedger{cooldown.NewMemory()}, cfg.Economy, cfg.Cooldowns, zap.New(core))

	_, err := engine.Daily(context.Background(), "u1")
	if !apperr.Is(err, apperr.Internal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	entries := logs.FilterMessage("cooldown release failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one release warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["action"]; got != "daily" {
		t.Fatalf("unexpected action field %v", got)
	}
}
