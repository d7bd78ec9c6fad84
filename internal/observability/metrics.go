package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spikectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	spikes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikectl",
			Subsystem: "spiker",
			Name:      "spikes_total",
			Help:      "Spike batches by outcome.",
		},
		[]string{"outcome"},
	)
	notesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spikectl",
			Subsystem: "spiker",
			Name:      "notes_created_total",
			Help:      "Notes created by committed spike batches.",
		},
	)
	settlementNotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spikectl",
			Subsystem: "spiker",
			Name:      "settlement_notes_total",
			Help:      "Notes visited by settlement passes, by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, spikes, notesCreated, settlementNotes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// SpikerMetrics feeds spiker outcomes into the process registry.
type SpikerMetrics struct{}

func NewSpikerMetrics() SpikerMetrics {
	RegisterMetrics()
	return SpikerMetrics{}
}

func (SpikerMetrics) ObserveSpike(outcome string, notes int) {
	spikes.WithLabelValues(outcome).Inc()
	if notes > 0 {
		notesCreated.Add(float64(notes))
	}
}

func (SpikerMetrics) ObserveSettlement(cleared, failed, skipped, unattempted int) {
	for result, n := range map[string]int{
		"cleared":     cleared,
		"failed":      failed,
		"skipped":     skipped,
		"unattempted": unattempted,
	} {
		if n > 0 {
			settlementNotes.WithLabelValues(result).Add(float64(n))
		}
	}
}
