/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	commands       *prometheus.CounterVec
	rollovers      prometheus.Counter
	prioritySeated prometheus.Counter
	storageErrors  prometheus.Counter
	slotsTaken     prometheus.Gauge
}

// initMetrics registers with reg; a nil reg creates unregistered collectors.
func (e *Engine) initMetrics(reg prometheus.Registerer) {
	promautoFactory := promauto.With(reg)
	e.metrics = &engineMetrics{}
	e.metrics.commands = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamenight_commands_total",
			Help: "register and unregister commands by outcome",
		},
		[]string{"action", "outcome"},
	)
	e.metrics.rollovers = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gamenight_rollovers_total",
		Help: "number of weekly cycles started",
	})
	e.metrics.prioritySeated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gamenight_priority_seated_total",
		Help: "number of seats filled by priority carryover",
	})
	e.metrics.storageErrors = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gamenight_storage_errors_total",
		Help: "number of operations that failed on the storage backend",
	})
	e.metrics.slotsTaken = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gamenight_slots_taken",
		Help: "number of seats taken in the current cycle",
	})
}
