// Package metrics registers the Prometheus collectors the API exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AssistantTurns counts conversational turns by kind (command or chat).
var AssistantTurns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollbook_assistant_turns_total",
	Help: "Assistant turns handled, labelled by command vs free-form chat.",
}, []string{"kind"})

// AttendanceWrites counts day-map saves through the API.
var AttendanceWrites = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rollbook_attendance_writes_total",
	Help: "Attendance day maps written via the HTTP API.",
})

// SummaryRefreshes counts worker-side summary cache refreshes.
var SummaryRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rollbook_summary_refreshes_total",
	Help: "Daily summaries recomputed by the worker.",
})
