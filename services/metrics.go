package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsPushed counts notifications stored on user records.
	// Labels: type
	NotificationsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpulse",
			Subsystem: "notifications",
			Name:      "pushed_total",
			Help:      "Total number of notifications stored for users",
		},
		[]string{"type"},
	)

	// NotificationsDropped counts realtime deliveries skipped because the hub
	// queue was full.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskpulse",
			Subsystem: "notifications",
			Name:      "dropped_total",
			Help:      "Realtime notification deliveries dropped by the websocket hub",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskpulse",
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Currently connected websocket clients",
		},
	)

	// LoginAttempts counts login attempts.
	// Labels: result (success, failure)
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskpulse",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by result",
		},
		[]string{"result"},
	)
)
