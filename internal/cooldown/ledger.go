// Package cooldown tracks per-user action cooldowns with atomic check-and-reserve.
package cooldown

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Action string

const (
	ActionDaily Action = "daily"
	ActionWork  Action = "work"
	ActionCover Action = "cover"
	ActionHelp  Action = "help"
)

var ErrInvalidWindow = errors.New("cooldown window must be positive")

type Result struct {
	Allowed   bool
	Remaining time.Duration
}

// Ledger reserves an action for a subject. Reserve checks and records in one step so two
// concurrent callers for the same subject and action cannot both be allowed.
type Ledger interface {
	Reserve(ctx context.Context, subject string, action Action, window time.Duration, now time.Time) (Result, error)
	Release(ctx context.Context, subject string, action Action) error
}

type key struct {
	subject string
	action  Action
}

type entry struct {
	at     time.Time
	window time.Duration
}

func (e entry) expiresAt() time.Time { return e.at.Add(e.window) }

type Memory struct {
	mu      sync.Mutex
	entries map[key]entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[key]entry)}
}

func (m *Memory) Reserve(_ context.Context, subject string, action Action, window time.Duration, now time.Time) (Result, error) {
	if window <= 0 {
		return Result{}, ErrInvalidWindow
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{subject: subject, action: action}
	if current, ok := m.entries[k]; ok {
		if now.Before(current.expiresAt()) {
			return Result{Allowed: false, Remaining: current.expiresAt().Sub(now)}, nil
		}
	}
	m.entries[k] = entry{at: now, window: window}
	return Result{Allowed: true}, nil
}

// Release drops a reservation, used when the reserved action could not go ahead.
func (m *Memory) Release(_ context.Context, subject string, action Action) error {
	m.mu.Lock()
	delete(m.entries, key{subject: subject, action: action})
	m.mu.Unlock()
	return nil
}

// Remaining reports the time left without reserving.
func (m *Memory) Remaining(subject string, action Action, now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[key{subject: subject, action: action}]
	if !ok || !now.Before(current.expiresAt()) {
		return 0
	}
	return current.expiresAt().Sub(now)
}

// Sweep deletes expired entries and returns how many were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt()) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
