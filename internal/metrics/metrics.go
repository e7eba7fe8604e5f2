// Package metrics holds the Prometheus collectors of the PvP engine. They are
// served on /metrics and are the only thing admin dashboards consume.
package metrics

import (
	"battle_rooms/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pvp"

var (
	RoomsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Non-deleted rooms by status.",
	}, []string{"status"})

	StaleRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stale_rooms",
		Help:      "Active rooms whose deadline has elapsed and is not processed yet.",
	}, []string{"game_type"})

	ReviewRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "review_rooms",
		Help:      "Rooms held for manual review.",
	})

	SweepResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_resolutions_total",
		Help:      "Deadlines resolved by the sweep, by outcome.",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one sweep pass.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claim_conflicts_total",
		Help:      "Lost version compare-and-swap attempts.",
	})

	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_total",
		Help:      "Room operations by action and result code.",
	}, []string{"action", "code"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Room events handed to the broadcast gateway.",
	}, []string{"type"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})
)

// ObserveStats выставляет gauges по срезу хранилища
func ObserveStats(s domain.RoomStats) {
	for status, n := range s.Counts {
		RoomsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	for gt, n := range s.Stale {
		StaleRooms.WithLabelValues(string(gt)).Set(float64(n))
	}
	ReviewRooms.Set(float64(s.Review))
}

// ObserveAction считает результат операции; code "ok" для успеха
func ObserveAction(action string, err error) {
	code := "ok"
	if err != nil {
		code = domain.Code(err)
		if code == "" {
			code = "internal"
		}
	}
	Actions.WithLabelValues(action, code).Inc()
}
