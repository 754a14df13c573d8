package playbook

import (
	"context"
	"sync"
	"time"

	"moodguard/internal/modules/audit"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type Config struct {
	LockdownMinutes int
}

type State struct {
	Lockdown bool
	Since    time.Time
	Until    time.Time
}

// RevertFunc undoes a lockdown. It runs exactly once per lockdown.
type RevertFunc func(ctx context.Context)

type lockdown struct {
	state    State
	timer    Timer
	onRevert RevertFunc
}

// Engine is the per-guild Idle -> Lockdown -> Idle state machine.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	audit   *audit.Logger
	active  map[string]*lockdown
	pending sync.WaitGroup
}

func New(cfg Config, auditLogger *audit.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		clock:  realClock{},
		audit:  auditLogger,
		active: make(map[string]*lockdown),
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) duration() time.Duration {
	d := time.Duration(e.cfg.LockdownMinutes) * time.Minute
	if d <= 0 {
		d = time.Hour
	}
	return d
}

// TriggerLockdown enters lockdown for guildID and schedules the revert. It returns false,
// doing nothing, when the guild is already locked down.
func (e *Engine) TriggerLockdown(ctx context.Context, guildID string, onRevert RevertFunc) bool {
	e.mu.Lock()
	if _, exists := e.active[guildID]; exists {
		e.mu.Unlock()
		return false
	}

	now := e.clock.Now()
	d := e.duration()
	entry := &lockdown{
		state:    State{Lockdown: true, Since: now, Until: now.Add(d)},
		onRevert: onRevert,
	}
	e.active[guildID] = entry
	e.pending.Add(1)
	entry.timer = e.clock.AfterFunc(d, func() {
		e.revert(context.WithoutCancel(ctx), guildID, entry, "lockdown expired")
	})
	e.mu.Unlock()

	if e.audit != nil {
		e.audit.Log(ctx, audit.LevelWarn, guildID, "", "raid_lockdown", "lockdown initiated")
	}
	return true
}

// IsLockdown reports the guild's current state.
func (e *Engine) IsLockdown(guildID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.active[guildID]
	if entry == nil {
		return State{}
	}
	return entry.state
}

// Release ends a lockdown early. It returns false when the guild was not locked down.
func (e *Engine) Release(ctx context.Context, guildID string) bool {
	e.mu.Lock()
	entry := e.active[guildID]
	e.mu.Unlock()
	if entry == nil {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return e.revert(ctx, guildID, entry, "lockdown released")
}

// Close reverts every active lockdown so permissions are restored before shutdown.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	guilds := make([]string, 0, len(e.active))
	for guildID := range e.active {
		guilds = append(guilds, guildID)
	}
	e.mu.Unlock()

	for _, guildID := range guilds {
		e.Release(ctx, guildID)
	}

	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (e *Engine) revert(ctx context.Context, guildID string, entry *lockdown, reason string) bool {
	e.mu.Lock()
	if e.active[guildID] != entry {
		e.mu.Unlock()
		return false
	}
	delete(e.active, guildID)
	e.mu.Unlock()
	defer e.pending.Done()

	if entry.onRevert != nil {
		entry.onRevert(ctx)
	}
	if e.audit != nil {
		e.audit.Log(ctx, audit.LevelInfo, guildID, "", "raid_lockdown", reason)
	}
	return true
}
