package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors of an engine.
type Metrics struct {
	Commands                *prometheus.CounterVec
	CommandDuration         *prometheus.HistogramVec
	ProcessInstancesEnded   prometheus.Counter
	ProcessInstancesStarted prometheus.Counter
}

// NewMetrics creates and registers the collectors. If the registerer is nil, a private registry is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	factory := promauto.With(registerer)

	return &Metrics{
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmn_commands_total",
			Help: "Total number of executed commands, partitioned by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bpmn_command_duration_seconds",
			Help:    "Duration of command executions, including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		ProcessInstancesEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_process_instances_ended_total",
			Help: "Total number of ended process instances",
		}),
		ProcessInstancesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_process_instances_started_total",
			Help: "Total number of started process instances",
		}),
	}
}
