package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var streamRestarts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kyupikon_stream_restarts",
	Help: "Number of times the stream subscription was restarted after ending",
})

var adminCounterResets = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kyupikon_admin_counter_resets",
	Help: "Number of bulk reply-counter resets requested via the admin API",
})
