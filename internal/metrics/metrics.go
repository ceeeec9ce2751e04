// Package metrics exposes prometheus instruments for the watcher.
// Labels are bounded; no per-player labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adminsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adminwatch_admins_online",
		Help: "Admins currently tracked",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminwatch_godmode_transitions_total",
		Help: "God mode changes detected by the poller",
	}, []string{"state"}) // "on", "off"

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adminwatch_poll_duration_seconds",
		Help:    "Time spent in one poll pass",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	offensesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminwatch_offenses_total",
		Help: "Attacks by admins in god mode",
	})

	kicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminwatch_kicks_total",
		Help: "Admins kicked for attacking in god mode",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminwatch_notifications_total",
		Help: "Webhook notifications by result",
	}, []string{"result"}) // "sent", "failed", "dropped", "disabled"

	bridgeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adminwatch_bridge_connections",
		Help: "Game server bridge connections (0 or 1)",
	})

	bridgeFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminwatch_bridge_frames_total",
		Help: "Frames received from the game server",
	}, []string{"type"})

	auditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminwatch_audit_dropped_total",
		Help: "Audit entries dropped by rate limiting or a full buffer",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminwatch_connection_rejected_total",
		Help: "HTTP requests or bridge connections rejected",
	}, []string{"reason"}) // "rate_limit", "auth", "upgrade"
)

// SetAdminsOnline updates the admin gauge
func SetAdminsOnline(count int) {
	adminsOnline.Set(float64(count))
}

// RecordTransition counts one god mode change
func RecordTransition(invulnerable bool) {
	state := "off"
	if invulnerable {
		state = "on"
	}
	transitionsTotal.WithLabelValues(state).Inc()
}

// ObservePoll records a poll pass duration in seconds
func ObservePoll(seconds float64) {
	pollDuration.Observe(seconds)
}

func RecordOffense() {
	offensesTotal.Inc()
}

func RecordKick() {
	kicksTotal.Inc()
}

// RecordNotification counts a webhook outcome.
// result must be one of: "sent", "failed", "dropped", "disabled"
func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

// SetBridgeConnected flips the bridge connection gauge
func SetBridgeConnected(connected bool) {
	if connected {
		bridgeConnections.Set(1)
		return
	}
	bridgeConnections.Set(0)
}

// RecordBridgeFrame counts an inbound frame by its type
func RecordBridgeFrame(frameType string) {
	bridgeFrames.WithLabelValues(frameType).Inc()
}

func RecordAuditDropped() {
	auditDropped.Inc()
}

// RecordConnectionRejected counts a rejection.
// reason must be one of: "rate_limit", "auth", "upgrade"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}
