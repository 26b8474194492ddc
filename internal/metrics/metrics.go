package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket / broadcast metrics
var (
	// ConnectedClients tracks the current number of registered websocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsync_connected_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// BroadcastsTotal tracks outbound events by name and delivery mode
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_broadcasts_total",
			Help: "Outbound events by event name and delivery mode (all/targeted)",
		},
		[]string{"event", "mode"},
	)

	// SlowClientsEvicted tracks clients dropped because their send buffer filled
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_slow_clients_evicted_total",
			Help: "Clients disconnected because broadcast delivery could not keep up",
		},
	)

	// MessageSendDuration tracks per-connection write latency in seconds
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsync_ws_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Event handler metrics
var (
	// EventsTotal tracks inbound events by name and outcome
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_events_total",
			Help: "Inbound events by event name and outcome (ok/error)",
		},
		[]string{"event", "status"},
	)

	// StoreErrorsTotal tracks failed document store operations
	StoreErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_store_errors_total",
			Help: "Document store operations that failed as unavailable",
		},
	)
)

// Simulator metrics
var (
	// SimulatorTicksTotal tracks completed simulation ticks
	SimulatorTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_simulator_ticks_total",
			Help: "Completed live-data simulation ticks",
		},
	)

	// SimulatorSamplesTotal tracks synthesized vitals samples by outcome
	SimulatorSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_simulator_samples_total",
			Help: "Synthesized vitals samples by outcome (ok/error)",
		},
		[]string{"status"},
	)

	// SeriousAlarmsTotal tracks very-serious vitals alarms raised
	SeriousAlarmsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_serious_alarms_total",
			Help: "Very-serious vitals alarms raised by the simulator",
		},
	)
)
