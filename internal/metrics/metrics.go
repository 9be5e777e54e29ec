// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_access_tokens_issued_total",
		Help: "Access tokens issued when a course session starts.",
	})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_enrollments_total",
		Help: "Course enrollment attempts by outcome.",
	}, []string{"result"})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_sessions_closed_total",
		Help: "Course sessions ended, by reason (manual or expired).",
	}, []string{"reason"})

	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_course_events_recorded_total",
		Help: "Course events persisted by the worker.",
	}, []string{"kind"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)
