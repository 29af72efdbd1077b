package monitoring

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_stage_attempts_total",
			Help: "Booking stage attempts by outcome",
		},
		[]string{"stage", "status"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_requests_total",
			Help: "Discovery cache lookups by result",
		},
		[]string{"result"},
	)

	remoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Duration of calls to the railway e-ticket API",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation", "status"},
	)
)

// TrackStage records one attempt of a booking stage.
// status is "success", "retry" or "failed".
func TrackStage(stage, status string) {
	stageAttempts.WithLabelValues(stage, status).Inc()
}

// TrackCache records a cache lookup result: "hit", "miss" or "bypass".
func TrackCache(result string) {
	cacheRequests.WithLabelValues(result).Inc()
}

// TrackRemoteCall records one round trip to the remote service.
func TrackRemoteCall(operation, status string, duration time.Duration) {
	remoteCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// DumpMetrics writes the run's recorded instruments to the logger at debug
// level. A single-shot process has nothing to scrape, so the numbers go to
// the log when it exits.
func DumpMetrics(log *slog.Logger) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Debug("metrics gather failed", "error", err)
		return
	}

	for _, mf := range families {
		switch mf.GetName() {
		case "booking_stage_attempts_total", "discovery_cache_requests_total", "remote_call_duration_seconds":
		default:
			continue
		}
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				if h.GetSampleCount() == 0 {
					continue
				}
				attrs = append(attrs, "count", h.GetSampleCount(), "sum_seconds", h.GetSampleSum())
			default:
				if m.GetCounter().GetValue() == 0 {
					continue
				}
				attrs = append(attrs, "count", m.GetCounter().GetValue())
			}
			log.Debug("metric", attrs...)
		}
	}
}
