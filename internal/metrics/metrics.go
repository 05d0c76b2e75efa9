// Package metrics exposes launcher supervision counters. Collectors are
// package-level and registered once via Register; recording before
// registration is a no-op on the default registry but still safe.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	spawns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mnesis",
		Subsystem: "launcher",
		Name:      "spawns_total",
		Help:      "Number of backend spawn attempts, first boot and restarts alike.",
	})
	restarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mnesis",
		Subsystem: "launcher",
		Name:      "restarts_total",
		Help:      "Number of crash-triggered restarts actually scheduled.",
	})
	abnormalExits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mnesis",
		Subsystem: "launcher",
		Name:      "abnormal_exits_total",
		Help:      "Number of non-clean backend exits observed.",
	})
	readinessDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mnesis",
		Subsystem: "launcher",
		Name:      "readiness_seconds",
		Help:      "Wall-clock time from spawn to the model-ready signal.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	backendStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mnesis",
		Subsystem: "launcher",
		Name:      "backend_status",
		Help:      "Current backend status as a one-hot gauge per state.",
	}, []string{"status"})
)

// Register registers all collectors with the given registerer. Passing nil
// uses the default registry. Safe to call once per process.
func Register(r prometheus.Registerer) error {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{spawns, restarts, abnormalExits, readinessDuration, backendStatus} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the prometheus scrape handler mounted on the IPC server.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncSpawn()        { spawns.Inc() }
func IncRestart()      { restarts.Inc() }
func IncAbnormalExit() { abnormalExits.Inc() }

// ObserveReadiness records the spawn-to-ready duration in seconds.
func ObserveReadiness(seconds float64) {
	readinessDuration.Observe(seconds)
}

// SetStatus flips the one-hot status gauge to the given state.
func SetStatus(current string) {
	for _, s := range []string{"starting", "ready", "offline", "conflict"} {
		v := 0.0
		if s == current {
			v = 1.0
		}
		backendStatus.WithLabelValues(s).Set(v)
	}
}
