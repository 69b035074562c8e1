package ddns

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle results reported in the ddns_cycles_total "result" label.
const (
	resultUnchanged      = "unchanged"
	resultUpdated        = "updated"
	resultLookupError    = "lookup_error"
	resultDiscoveryError = "discovery_error"
	resultUpdateError    = "update_error"
)

// Metrics counts reconciliation outcomes.
//
// There is no HTTP endpoint.
// If a textfile path is set, the registry is written there after every cycle
// in the format read by the node_exporter textfile collector.
type Metrics struct {
	registry    *prometheus.Registry
	textfile    string
	cycles      *prometheus.CounterVec
	lookups     prometheus.Counter
	updates     prometheus.Counter
	lastSuccess prometheus.Gauge
}

// NewMetrics creates a Metrics backed by its own registry.
// An empty textfile disables writing.
func NewMetrics(textfile string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		textfile: textfile,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by result.",
		}, []string{"result"}),
		lookups: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "lookups_total",
			Help:      "DNS record lookups issued to the provider.",
		}),
		updates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "updates_total",
			Help:      "DNS record updates confirmed by the provider.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddns",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that completed without error.",
		}),
	}
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) observeCycle(result string, now time.Time) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	if result == resultUnchanged || result == resultUpdated {
		m.lastSuccess.Set(float64(now.Unix()))
	}
}

func (m *Metrics) observeLookup() {
	if m != nil {
		m.lookups.Inc()
	}
}

func (m *Metrics) observeUpdate() {
	if m != nil {
		m.updates.Inc()
	}
}

func (m *Metrics) write() error {
	if m == nil || m.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("error writing metrics to %s: %w", m.textfile, err)
	}
	return nil
}
