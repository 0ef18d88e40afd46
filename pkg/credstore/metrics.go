package credstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for the checks counter.
const (
	ResultSuccess     = "success"
	ResultBadPassword = "bad_password"
	ResultUnknownUser = "unknown_user"
)

const (
	opLoad  = "load"
	opClear = "clear"
)

// Metrics provides Prometheus metrics for a credential store.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	entries prometheus.Gauge
	swaps   *prometheus.CounterVec
	checks  *prometheus.CounterVec
}

// NewMetrics creates the store metrics and registers them with registry.
// If registry is nil the metrics are created but not registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "yamlauth",
				Subsystem: "credstore",
				Name:      "entries",
				Help:      "Number of distinct usernames currently loaded",
			},
		),
		swaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yamlauth",
				Subsystem: "credstore",
				Name:      "swaps_total",
				Help:      "Total number of mapping replacements by operation",
			},
			[]string{"op"},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "yamlauth",
				Subsystem: "credstore",
				Name:      "checks_total",
				Help:      "Total number of credential checks by result",
			},
			[]string{"result"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.entries, m.swaps, m.checks)
	}

	// Pre-create every labelled series.
	for _, op := range []string{opLoad, opClear} {
		m.swaps.WithLabelValues(op)
	}
	for _, r := range []string{ResultSuccess, ResultBadPassword, ResultUnknownUser} {
		m.checks.WithLabelValues(r)
	}

	return m
}

func (m *Metrics) recordSwap(op string, entries int) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(op).Inc()
	m.entries.Set(float64(entries))
}

func (m *Metrics) recordCheck(result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result).Inc()
}
