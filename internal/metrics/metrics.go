package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery results
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultBlocked   = "blocked"
)

// Dispatcher Metrics
var (
	// FiringsTotal counts broadcast rounds, including rounds that could not read subscribers
	FiringsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_firings_total",
			Help: "Total announcement rounds started",
		},
	)

	// DeliveriesTotal tracks per-recipient send attempts by result
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Total announcement deliveries by result (delivered/failed/blocked)",
		},
		[]string{"result"},
	)

	// Subscribers is the subscriber count seen by the latest round
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_subscribers",
			Help: "Subscribers addressed by the latest announcement round",
		},
	)

	NextOccurrence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_next_occurrence_timestamp_seconds",
			Help: "Unix time of the next scheduled announcement",
		},
	)
)

// Command Metrics
var (
	// CommandsTotal tracks handled bot commands by command and outcome
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_commands_total",
			Help: "Total bot commands by command and outcome",
		},
		[]string{"command", "outcome"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
