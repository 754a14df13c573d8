// Package economy implements wallets, daily and work rewards, and message experience.
package economy

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
	"moodguard/internal/cooldown"
	"moodguard/internal/storage"

	"go.uber.org/zap"
)

// ErrInsufficientFunds is returned by Debit when the balance does not cover the amount.
var ErrInsufficientFunds = apperr.E(apperr.Validation, "economy.debit", storage.ErrInsufficientFunds)

type Wallets interface {
	GetWallet(ctx context.Context, userID string, starting int64) (storage.Wallet, error)
	Credit(ctx context.Context, userID string, amount, starting int64) (int64, error)
	Debit(ctx context.Context, userID string, amount, starting int64) (int64, error)
	AddXP(ctx context.Context, userID string, delta, starting int64) (int64, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Job struct {
	Name string
	Min  int
	Max  int
}

var jobs = []Job{
	{Name: "Developer", Min: 80, Max: 120},
	{Name: "Delivery", Min: 40, Max: 70},
	{Name: "Mechanic", Min: 50, Max: 90},
}

// Claim is the outcome of a cooldown-gated reward.
type Claim struct {
	Allowed   bool
	Remaining time.Duration
	Amount    int64
	Balance   int64
	Job       string
}

type Progress struct {
	XP       int64
	Level    int64
	Progress int64
}

type Engine struct {
	wallets Wallets
	ledger  cooldown.Ledger
	cfg     config.EconomyConfig
	windows config.CooldownsConfig
	clock   Clock
	intn    func(n int) int
	logger  *zap.Logger
}

func NewEngine(wallets Wallets, ledger cooldown.Ledger, cfg config.EconomyConfig, windows config.CooldownsConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		wallets: wallets,
		ledger:  ledger,
		cfg:     cfg,
		windows: windows,
		clock:   realClock{},
		intn:    rand.IntN,
		logger:  logger,
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) starting() int64 { return int64(e.cfg.StartingBalance) }

func (e *Engine) Balance(ctx context.Context, userID string) (int64, error) {
	wallet, err := e.wallets.GetWallet(ctx, userID, e.starting())
	if err != nil {
		return 0, apperr.E(apperr.Internal, "economy.balance", err)
	}
	return wallet.Balance, nil
}

func (e *Engine) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := e.wallets.Credit(ctx, userID, amount, e.starting())
	if err != nil {
		return 0, apperr.E(apperr.Internal, "economy.credit", err)
	}
	return balance, nil
}

// Debit removes amount atomically. Insufficient funds leave the balance untouched.
func (e *Engine) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	balance, err := e.wallets.Debit(ctx, userID, amount, e.starting())
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return 0, ErrInsufficientFunds
		}
		return 0, apperr.E(apperr.Internal, "economy.debit", err)
	}
	return balance, nil
}

func (e *Engine) Daily(ctx context.Context, userID string) (Claim, error) {
	amount := e.cfg.DailyMin
	if spread := e.cfg.DailyMax - e.cfg.DailyMin; spread > 0 {
		amount += e.intn(spread + 1)
	}
	window := time.Duration(e.windows.DailyHours) * time.Hour
	return e.claim(ctx, userID, cooldown.ActionDaily, window, int64(amount), "")
}

func (e *Engine) Work(ctx context.Context, userID string) (Claim, error) {
	job := jobs[e.intn(len(jobs))]
	amount := job.Min + e.intn(job.Max-job.Min+1)
	window := time.Duration(e.windows.WorkMinutes) * time.Minute
	return e.claim(ctx, userID, cooldown.ActionWork, window, int64(amount), job.Name)
}

func (e *Engine) claim(ctx context.Context, userID string, action cooldown.Action, window time.Duration, amount int64, job string) (Claim, error) {
	res, err := e.ledger.Reserve(ctx, userID, action, window, e.clock.Now())
	if err != nil {
		return Claim{}, apperr.E(apperr.Internal, "economy."+string(action), err)
	}
	if !res.Allowed {
		return Claim{Remaining: res.Remaining}, nil
	}
	balance, err := e.wallets.Credit(ctx, userID, amount, e.starting())
	if err != nil {
		if releaseErr := e.ledger.Release(context.WithoutCancel(ctx), userID, action); releaseErr != nil {
			e.logger.Warn("cooldown release failed", zap.String("user_id", userID), zap.String("action", string(action)), zap.Error(releaseErr))
		}
		return Claim{}, apperr.E(apperr.Internal, "economy."+string(action), err)
	}
	return Claim{Allowed: true, Amount: amount, Balance: balance, Job: job}, nil
}

// AwardMessage grants 1-3 experience for a chat message.
func (e *Engine) AwardMessage(ctx context.Context, userID string) (Progress, error) {
	xp, err := e.wallets.AddXP(ctx, userID, int64(1+e.intn(3)), e.starting())
	if err != nil {
		return Progress{}, apperr.E(apperr.Internal, "economy.xp", err)
	}
	return progressFor(xp), nil
}

func (e *Engine) Level(ctx context.Context, userID string) (Progress, error) {
	wallet, err := e.wallets.GetWallet(ctx, userID, e.starting())
	if err != nil {
		return Progress{}, apperr.E(apperr.Internal, "economy.level", err)
	}
	return progressFor(wallet.XP), nil
}

func progressFor(xp int64) Progress {
	return Progress{XP: xp, Level: xp/100 + 1, Progress: xp % 100}
}
