// Package telemetry provides Prometheus metrics and correlation-id helpers.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	once sync.Once

	FilterVerdicts *prometheus.CounterVec
	GuardTriggers  *prometheus.CounterVec
	CoverJobs      *prometheus.CounterVec
	AIRequests     *prometheus.CounterVec

	ExtractionDuration prometheus.Observer
	PollsInFlight      prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		FilterVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "moodguard_filter_verdicts_total", Help: "Filter chain verdicts by kind"}, []string{"verdict"})
		GuardTriggers = promauto.NewCounterVec(prometheus.CounterOpts{Name: "moodguard_guard_triggers_total", Help: "Raid and nuke responses triggered"}, []string{"kind"})
		CoverJobs = promauto.NewCounterVec(prometheus.CounterOpts{Name: "moodguard_cover_jobs_total", Help: "Cover pipeline transitions by outcome"}, []string{"outcome"})
		AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "moodguard_ai_requests_total", Help: "AI completions by result"}, []string{"result"})
		ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "moodguard_extraction_duration_seconds", Help: "Audio extraction duration seconds", Buckets: prometheus.DefBuckets})
		PollsInFlight = promauto.NewGauge(prometheus.GaugeOpts{Name: "moodguard_cover_polls_in_flight", Help: "Conversion jobs currently being polled"})
	})
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func CountVerdict(kind string) {
	if FilterVerdicts != nil {
		FilterVerdicts.WithLabelValues(kind).Inc()
	}
}

func CountGuard(kind string) {
	if GuardTriggers != nil {
		GuardTriggers.WithLabelValues(kind).Inc()
	}
}

func CountCover(outcome string) {
	if CoverJobs != nil {
		CoverJobs.WithLabelValues(outcome).Inc()
	}
}

func CountAI(result string) {
	if AIRequests != nil {
		AIRequests.WithLabelValues(result).Inc()
	}
}

func AddPolls(delta float64) {
	if PollsInFlight != nil {
		PollsInFlight.Add(delta)
	}
}

// TimeFunc measures fn and records it in obs when obs is non-nil.
func TimeFunc(obs prometheus.Observer, fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d, err
}

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation embeds id in ctx, generating one when id is empty.
func WithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, corrKey, id)
}

func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// Logger returns logger annotated with the correlation id from ctx, if any.
func Logger(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return logger.With(zap.String("corr", id))
	}
	return logger
}
