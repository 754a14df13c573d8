package infraction

import (
	"testing"
	"time"

	"moodguard/internal/config"
)

func newEngine(maxMinutes int) *Engine {
	return NewEngine(config.FilterConfig{
		WarnLimit:          3,
		BaseTimeoutMinutes: 5,
		MaxTimeoutMinutes:  maxMinutes,
		DecayHours:         12,
	})
}

func TestEscalationDoubling(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)

	var timeouts []time.Duration
	for i := 0; i < 12; i++ {
		esc := engine.Offend("u1", now.Add(time.Duration(i)*time.Minute))
		if esc.Outcome == OutcomeTimeout {
			timeouts = append(timeouts, esc.Timeout)
			continue
		}
		if esc.Limit != 3 {
			t.Fatalf("expected limit 3, got %d", esc.Limit)
		}
	}
	want := []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute}
	if len(timeouts) != len(want) {
		t.Fatalf("expected %d timeouts, got %v", len(want), timeouts)
	}
	for i := range want {
		if timeouts[i] != want[i] {
			t.Fatalf("timeout %d: expected %s, got %s", i, want[i], timeouts[i])
		}
	}
}

func TestWarningsCountUp(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)
	for i := 1; i <= 3; i++ {
		esc := engine.Offend("u1", now)
		if esc.Outcome != OutcomeWarn || esc.Warnings != i {
			t.Fatalf("offense %d: unexpected escalation %+v", i, esc)
		}
	}
	esc := engine.Offend("u1", now)
	if esc.Outcome != OutcomeTimeout || esc.Timeout != 5*time.Minute {
		t.Fatalf("fourth offense should time out for 5m, got %+v", esc)
	}
	if rec := engine.Get("u1", now); rec.Warnings != 0 || rec.TimeoutCount != 1 {
		t.Fatalf("warnings should reset after timeout, got %+v", rec)
	}
}

func TestDecayResetsRecord(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)
	for i := 0; i < 4; i++ {
		engine.Offend("u1", now)
	}
	later := now.Add(12*time.Hour + time.Second)
	esc := engine.Offend("u1", later)
	if esc.Outcome != OutcomeWarn || esc.Warnings != 1 {
		t.Fatalf("expected fresh warning after decay, got %+v", esc)
	}
	if rec := engine.Get("u1", later); rec.TimeoutCount != 0 {
		t.Fatalf("timeout count should reset, got %+v", rec)
	}
}

func TestDecayBoundaryKeepsRecord(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)
	engine.Offend("u1", now)
	esc := engine.Offend("u1", now.Add(12*time.Hour))
	if esc.Warnings != 2 {
		t.Fatalf("offense exactly at decay boundary should keep record, got %+v", esc)
	}
}

func TestTimeoutCap(t *testing.T) {
	engine := newEngine(15)
	now := time.Unix(0, 0)
	var last Escalation
	for i := 0; i < 12; i++ {
		esc := engine.Offend("u1", now)
		if esc.Outcome == OutcomeTimeout {
			last = esc
		}
	}
	if last.Timeout != 15*time.Minute || !last.Capped {
		t.Fatalf("expected capped 15m timeout, got %+v", last)
	}
}

func TestUncappedTimeoutStopsAtPlatformLimit(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)
	var last Escalation
	for i := 0; i < 64; i++ {
		esc := engine.Offend("u1", now)
		if esc.Outcome == OutcomeTimeout {
			last = esc
		}
	}
	if last.Timeout != MaxPlatformTimeout || !last.Capped {
		t.Fatalf("expected flagged platform limit, got %+v", last)
	}
}

func TestSweep(t *testing.T) {
	engine := newEngine(0)
	now := time.Unix(0, 0)
	engine.Offend("u1", now)
	engine.Offend("u2", now.Add(11*time.Hour))
	if removed := engine.Sweep(now.Add(13 * time.Hour)); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
