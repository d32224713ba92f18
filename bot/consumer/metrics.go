package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var streamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_stream_events_received_total",
	Help: "Total number of frames received from the stream, by kind",
}, []string{"kind"})

var streamBytes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kyupikon_stream_bytes_total",
	Help: "Total bytes received from the stream",
})

var streamConnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kyupikon_stream_connects_total",
	Help: "Number of successful stream connections",
})
