package ddns

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics registered on the default registry.
var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_cycles_total",
		Help: "Total number of reconciliation cycles by result.",
	}, []string{"result"})

	recordUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_record_updates_total",
		Help: "Total number of record modifications by result.",
	}, []string{"result"})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_retry_attempts_total",
		Help: "Total number of failed attempts by operation.",
	}, []string{"op"})

	lastCheckTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ddns_last_check_timestamp_seconds",
		Help: "Unix time at which the last reconciliation cycle started.",
	})
)
