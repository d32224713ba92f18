package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "kyupikon_event_duration_sec",
	Help: "Total duration of bot event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var ruleFiredCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_rule_fired",
	Help: "Number of times each message rule matched",
}, []string{"rule"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_actions",
	Help: "Number of platform actions performed, by kind and outcome",
}, []string{"kind", "outcome"})

var favoriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_favorites",
	Help: "Number of favorite attempts, by outcome",
}, []string{"outcome"})

var jobRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_job_runs",
	Help: "Number of scheduled job runs, by job and outcome",
}, []string{"job", "outcome"})
