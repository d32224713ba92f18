package rotator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var refillCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_rotator_refills",
	Help: "Number of content queue refills",
}, []string{"queue"})

var fallbackCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kyupikon_rotator_fallbacks",
	Help: "Number of times a random candidate was served because the queue store failed",
}, []string{"queue"})
