// Package metrics exposes refresh loop results as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gsmscope"

// Metrics holds the collectors updated after every cycle
type Metrics struct {
	registry *prometheus.Registry

	averagePower *prometheus.GaugeVec // mean dBm per operator
	maxPower     *prometheus.GaugeVec // strongest bin per operator and band
	sampleCount  *prometheus.GaugeVec // classified bins per operator

	cycles              prometheus.Counter
	scanFailures        prometheus.Counter
	skippedRows         prometheus.Counter
	consecutiveFailures prometheus.Gauge
	stale               prometheus.Gauge
	lastSuccess         prometheus.Gauge // unix time of the last successful cycle
	cycleDuration       prometheus.Histogram
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		averagePower: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_average_power_dbm",
			Help:      "Mean of the classified bin powers per operator in dBm",
		}, []string{"operator"}),
		maxPower: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_max_power_dbm",
			Help:      "Strongest classified bin per operator and band in dBm",
		}, []string{"operator", "band"}),
		sampleCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_samples",
			Help:      "Number of bins classified to the operator in the last cycle",
		}, []string{"operator"}),
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Refresh cycles completed, successful or not",
		}),
		scanFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_failures_total",
			Help:      "Refresh cycles that failed because a band scan failed",
		}),
		skippedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Malformed rtl_power output rows skipped",
		}),
		consecutiveFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Failed cycles in a row",
		}),
		stale: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readings_stale",
			Help:      "1 when the published readings are held over from an earlier cycle",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful cycle",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent scanning and aggregating one cycle",
			Buckets:   []float64{1, 2, 4, 6, 8, 10, 15, 20, 30, 60},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OnCycle records a published snapshot. Stale snapshots leave the operator gauges
// at their last measured values.
func (m *Metrics) OnCycle(ctx context.Context, snap *models.Snapshot) error {
	if snap.Cycle == 0 {
		return nil
	}

	m.cycles.Inc()
	m.skippedRows.Add(float64(snap.SkippedRows))
	m.consecutiveFailures.Set(float64(snap.ConsecutiveFailures))
	if !snap.CompletedAt.IsZero() && !snap.StartedAt.IsZero() {
		m.cycleDuration.Observe(snap.CompletedAt.Sub(snap.StartedAt).Seconds())
	}

	if snap.Stale {
		m.scanFailures.Inc()
		m.stale.Set(1)
		return nil
	}
	m.stale.Set(0)
	m.lastSuccess.Set(float64(snap.CompletedAt.Unix()))

	for _, row := range snap.Rows {
		if row.Reading == nil {
			m.averagePower.DeleteLabelValues(row.Operator)
			m.sampleCount.WithLabelValues(row.Operator).Set(0)
			m.maxPower.DeletePartialMatch(prometheus.Labels{"operator": row.Operator})
			continue
		}
		m.averagePower.WithLabelValues(row.Operator).Set(row.Reading.AveragePowerDBm)
		m.sampleCount.WithLabelValues(row.Operator).Set(float64(row.Reading.SampleCount))
		m.maxPower.DeletePartialMatch(prometheus.Labels{"operator": row.Operator})
		for band, br := range row.Reading.Bands {
			m.maxPower.WithLabelValues(row.Operator, band).Set(br.MaxPowerDBm)
		}
	}
	return nil
}
