// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clientauth_client_state",
		Help: "Last known external client lifecycle state (current=1; others 0).",
	}, []string{"state"})

	stateNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_state_notifications_total",
		Help: "Total number of state changes applied to the state store, by source and state.",
	}, []string{"source", "state"})

	stateNotificationsIgnoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_state_notifications_ignored_total",
		Help: "Total number of push notifications dropped by the event bridge, by reason.",
	}, []string{"reason"})

	stateListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clientauth_state_listeners",
		Help: "Current number of registered state store listeners.",
	})

	bridgeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clientauth_bridge_subscriptions",
		Help: "Current number of live push-channel subscriptions held by event bridges.",
	})

	bridgeResubscribesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_bridge_resubscribes_total",
		Help: "Total number of push-channel subscribe attempts made by the bridge supervisor, by result.",
	}, []string{"result"})
)

var clientStates = []string{"CHECKING", "CLOSED", "OPEN", "LOGIN_READY", "CAPTCHA_SOLVING", "LOGGED_IN"}

// SetClientState records state as the current client state.
func SetClientState(state string) {
	for _, s := range clientStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		clientState.WithLabelValues(s).Set(value)
	}
}

// RecordStateNotification counts an applied state change.
func RecordStateNotification(source, state string) {
	stateNotificationsTotal.WithLabelValues(source, state).Inc()
}

// RecordStateNotificationIgnored counts a dropped push notification.
func RecordStateNotificationIgnored(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	stateNotificationsIgnoredTotal.WithLabelValues(reason).Inc()
}

// SetStateListeners sets the listener gauge.
func SetStateListeners(n int) {
	stateListeners.Set(float64(n))
}

// IncBridgeSubscriptions increments the live subscription gauge.
func IncBridgeSubscriptions() {
	bridgeSubscriptions.Inc()
}

// DecBridgeSubscriptions decrements the live subscription gauge.
func DecBridgeSubscriptions() {
	bridgeSubscriptions.Dec()
}

// RecordBridgeResubscribe counts a supervised subscribe attempt.
func RecordBridgeResubscribe(result string) {
	bridgeResubscribesTotal.WithLabelValues(result).Inc()
}
