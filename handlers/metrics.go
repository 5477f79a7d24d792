package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskpulse",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route template, method and status code.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskpulse",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route template and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpulse",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP rate limiter.",
	})
)
