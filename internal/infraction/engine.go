// Package infraction escalates repeated filter offenses from warnings to doubling timeouts.
package infraction

import (
	"sync"
	"time"

	"moodguard/internal/config"
)

// Record is one user's offense history.
type Record struct {
	Warnings     int
	TimeoutCount int
	LastOffense  time.Time
}

// MaxPlatformTimeout is the longest member timeout the gateway accepts.
const MaxPlatformTimeout = 28 * 24 * time.Hour

type Outcome int

const (
	OutcomeWarn Outcome = iota
	OutcomeTimeout
)

// Escalation is the result of one offense.
type Escalation struct {
	Outcome  Outcome
	Warnings int
	Limit    int
	Timeout  time.Duration
	Capped   bool
}

type Engine struct {
	mu      sync.Mutex
	cfg     config.FilterConfig
	records map[string]*Record
}

func NewEngine(cfg config.FilterConfig) *Engine {
	return &Engine{
		cfg:     cfg,
		records: make(map[string]*Record),
	}
}

func (e *Engine) decay() time.Duration {
	return time.Duration(e.cfg.DecayHours) * time.Hour
}

// Offend registers an offense at now. A record idle for longer than the decay period
// starts over before the offense is counted.
func (e *Engine) Offend(userID string, now time.Time) Escalation {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.records[userID]
	if item == nil {
		item = &Record{}
		e.records[userID] = item
	}
	if !item.LastOffense.IsZero() && now.Sub(item.LastOffense) > e.decay() {
		*item = Record{}
	}

	item.Warnings++
	item.LastOffense = now

	if item.Warnings <= e.cfg.WarnLimit {
		return Escalation{Outcome: OutcomeWarn, Warnings: item.Warnings, Limit: e.cfg.WarnLimit}
	}

	timeout, capped := e.timeoutFor(item.TimeoutCount)
	item.TimeoutCount++
	item.Warnings = 0
	return Escalation{Outcome: OutcomeTimeout, Limit: e.cfg.WarnLimit, Timeout: timeout, Capped: capped}
}

// timeoutFor returns base * 2^count, bounded by MaxTimeoutMinutes when set and always by
// MaxPlatformTimeout. The bool reports that a bound was applied.
func (e *Engine) timeoutFor(count int) (time.Duration, bool) {
	limit := time.Duration(e.cfg.MaxTimeoutMinutes) * time.Minute
	if limit <= 0 || limit > MaxPlatformTimeout {
		limit = MaxPlatformTimeout
	}
	timeout := time.Duration(e.cfg.BaseTimeoutMinutes) * time.Minute
	for i := 0; i < count; i++ {
		timeout *= 2
		if timeout >= limit {
			return limit, true
		}
	}
	if timeout > limit {
		return limit, true
	}
	return timeout, false
}

// Get returns a copy of the record as of now, applying the decay rule without mutating.
func (e *Engine) Get(userID string, now time.Time) Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.records[userID]
	if item == nil {
		return Record{}
	}
	if now.Sub(item.LastOffense) > e.decay() {
		return Record{}
	}
	return *item
}

func (e *Engine) Reset(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.records, userID)
}

// Sweep forgets records idle past the decay period.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for userID, item := range e.records {
		if now.Sub(item.LastOffense) > e.decay() {
			delete(e.records, userID)
			removed++
		}
	}
	return removed
}
