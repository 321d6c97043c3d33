package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocpi_commands_total",
			Help: "Commands received from partners by type and synchronous result",
		},
		[]string{"command", "result"},
	)

	CommandExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocpi_command_executions_total",
			Help: "Detached command executions by type and outcome",
		},
		[]string{"command", "outcome"},
	)

	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocpi_change_events_total",
			Help: "Change events consumed from the bus",
		},
		[]string{"entity", "event", "outcome"},
	)

	PartnerPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocpi_partner_pushes_total",
			Help: "Outbound pushes to partner endpoints",
		},
		[]string{"module", "method", "outcome"},
	)

	PartnerPushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocpi_partner_push_duration_seconds",
			Help:    "Latency of partner pushes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"module"},
	)

	SuppressedMeterValues = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocpi_suppressed_meter_values_total",
			Help: "Meter values not broadcast because they coincide with the transaction start",
		},
	)
)
