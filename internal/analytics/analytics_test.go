package analytics

import (
	"context"
	"testing"
	"time"

	"moodguard/internal/storage"
)

type stubSource []storage.AuditLog

func (s stubSource) ListAuditLogs(context.Context, string, time.Time) ([]storage.AuditLog, error) {
	return s, nil
}

func TestReportCountsByLevelAndEvent(t *testing.T) {
	svc := New(stubSource{
		{Level: "warn", Event: "filter_delete"},
		{Level: "warn", Event: "filter_delete"},
		{Level: "crit", Event: "raid_detected"},
	})
	report, err := svc.Report(context.Background(), "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 || report.ByLevel["warn"] != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Events) != 2 || report.Events[0].Event != "filter_delete" {
		t.Fatalf("unexpected event order %+v", report.Events)
	}
}
