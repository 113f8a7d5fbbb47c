// Package metrics holds the Prometheus collectors of the progression engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "league_engine"

var (
	registry *prometheus.Registry
	once     sync.Once
)

var (
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Engine operations by name and outcome",
	}, []string{"operation", "outcome"})
	MatchesGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_generated_total",
		Help:      "Matches created by the fixture generator",
	}, []string{"format"})
	TeamsRankedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "teams_ranked_total",
		Help:      "Final ranks written by the finalizer",
	})
	SlotAssignmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_assignments_total",
		Help:      "Teams placed into match slots by propagation",
	})
	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Progression events published on the bus",
	}, []string{"type"})
)

var (
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of engine operations including the transaction",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	LockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "category_lock_wait_seconds",
		Help:      "Time spent waiting for a category lock",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
	})
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected websocket clients",
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			OperationsTotal,
			MatchesGeneratedTotal,
			TeamsRankedTotal,
			SlotAssignmentsTotal,
			EventsPublishedTotal,
			OperationDuration,
			LockWaitDuration,
			WebsocketClients,
		)
	})
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}

// RecordOperation counts an engine operation and observes its duration.
func RecordOperation(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func RecordMatchesGenerated(format string, n int) {
	MatchesGeneratedTotal.WithLabelValues(format).Add(float64(n))
}

func RecordTeamsRanked(n int) {
	TeamsRankedTotal.Add(float64(n))
}

func RecordSlotAssignments(n int) {
	SlotAssignmentsTotal.Add(float64(n))
}

func RecordLockWait(d time.Duration) {
	LockWaitDuration.Observe(d.Seconds())
}
