// Package analytics summarizes the audit trail for the status command.
package analytics

import (
	"context"
	"sort"
	"time"

	"moodguard/internal/storage"
)

type Source interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Source
}

func New(store Source) *Service {
	return &Service{store: store}
}

type EventCount struct {
	Event string
	Count int
}

type Report struct {
	Total   int
	ByLevel map[string]int
	Events  []EventCount
}

// Report counts audit entries for guildID since the given time. Events are ordered by
// count, busiest first.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int)}
	byEvent := make(map[string]int)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		byEvent[log.Event]++
	}
	for event, count := range byEvent {
		report.Events = append(report.Events, EventCount{Event: event, Count: count})
	}
	sort.Slice(report.Events, func(i, j int) bool {
		if report.Events[i].Count != report.Events[j].Count {
			return report.Events[i].Count > report.Events[j].Count
		}
		return report.Events[i].Event < report.Events[j].Event
	})
	return report, nil
}
