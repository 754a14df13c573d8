package audit

import (
	"context"
	"errors"
	"testing"

	"moodguard/internal/storage"

	"go.uber.org/zap"
)

type memorySink struct {
	entries []storage.AuditLog
	err     error
}

func (m *memorySink) AddAuditLog(_ context.Context, log storage.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, log)
	return nil
}

func TestLogPersistsAndNotifies(t *testing.T) {
	sink := &memorySink{}
	logger := NewLogger(sink, zap.NewNop())
	var notified []string
	logger.SetNotifier(func(_ context.Context, entry storage.AuditLog) {
		notified = append(notified, entry.Event)
	})

	logger.Log(context.Background(), LevelWarn, "g1", "u1", "filter_timeout", "minutes=5")

	if len(sink.entries) != 1 || sink.entries[0].Level != LevelWarn {
		t.Fatalf("unexpected entries: %+v", sink.entries)
	}
	if len(notified) != 1 || notified[0] != "filter_timeout" {
		t.Fatalf("unexpected notifications: %v", notified)
	}
}

func TestLogSurvivesSinkFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	logger := NewLogger(sink, zap.NewNop())
	called := false
	logger.SetNotifier(func(context.Context, storage.AuditLog) { called = true })

	logger.Log(context.Background(), LevelCrit, "g1", "", "raid_detected", "")
	if !called {
		t.Fatalf("notifier should still run when persistence fails")
	}
}
