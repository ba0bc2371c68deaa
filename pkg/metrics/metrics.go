package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "leyesabiertas", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "leyesabiertas", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "leyesabiertas", Name: "notifications_sent_total", Help: "Number of notification events delivered by event type."},
		[]string{"event"},
	)
	NotificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "leyesabiertas", Name: "notifications_failed_total", Help: "Number of notification events that failed delivery by event type."},
		[]string{"event"},
	)
	NotificationsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "leyesabiertas", Name: "notifications_dropped_total", Help: "Number of notification events dropped (superseded or queue full) by event type."},
		[]string{"event"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(NotificationsSent)
	reg.MustRegister(NotificationsFailed)
	reg.MustRegister(NotificationsDropped)
}
