package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probe_checks_total",
		Help: "Probes executed, by outcome.",
	}, []string{"status"})
	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probe_duration_seconds",
		Help:    "Wall-clock probe duration.",
		Buckets: prometheus.DefBuckets,
	})
)
