package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: outcome (done, waiting, resumed, retry, failed, requeued)
	thoughtsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reflex",
		Subsystem: "engine",
		Name:      "thoughts_processed_total",
		Help:      "Processing attempts by outcome",
	}, []string{"outcome"})

	// Labels: path (rule, fallback)
	dispatchPath = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reflex",
		Subsystem: "engine",
		Name:      "dispatch_total",
		Help:      "Attempts handled by a matching rule or by the fallback",
	}, []string{"path"})

	// Labels: tool, status (ok, error, invalid)
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reflex",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	attemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reflex",
		Subsystem: "engine",
		Name:      "attempt_duration_seconds",
		Help:      "Wall time of a single thought attempt",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	activeThoughts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reflex",
		Subsystem: "engine",
		Name:      "active_thoughts",
		Help:      "Thoughts currently being processed",
	})

	wakeups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reflex",
		Subsystem: "engine",
		Name:      "wakeups_total",
		Help:      "Waiting thoughts returned to pending by the waker",
	})

	snapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reflex",
		Subsystem: "persist",
		Name:      "snapshots_total",
		Help:      "Snapshot saves by status",
	}, []string{"status"})
)

func RecordAttempt(outcome string, d time.Duration) {
	thoughtsProcessed.WithLabelValues(outcome).Inc()
	attemptDuration.Observe(d.Seconds())
}

func RecordDispatch(path string) {
	dispatchPath.WithLabelValues(path).Inc()
}

func RecordToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrInvalidAction) {
			status = "invalid"
		}
	}
	toolCalls.WithLabelValues(tool, status).Inc()
}

func RecordWakeups(n int) {
	wakeups.Add(float64(n))
}

func RecordSnapshot(err error) {
	if err != nil {
		snapshotSaves.WithLabelValues("error").Inc()
		return
	}
	snapshotSaves.WithLabelValues("ok").Inc()
}
