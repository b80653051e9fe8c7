// Package metrics exposes Prometheus collectors for the checker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_checks_total",
		Help: "Full 8-digit checks by selection mode and resolved tier",
	}, []string{"mode", "tier"})

	QuickChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_quick_checks_total",
		Help: "3-digit quick checks by selection mode and outcome",
	}, []string{"mode", "potential"})

	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "winning_numbers_refresh_total",
		Help: "Winning-number refresh attempts by source and status",
	}, []string{"source", "status"})

	ScanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoice_scan_duration_seconds",
		Help:    "Time spent in OCR per scanned invoice",
		Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"status"})

	KnownPeriods = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "winning_numbers_known_periods",
		Help: "Number of periods currently loaded",
	})
)

// MustRegister registers every collector
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ChecksTotal,
		QuickChecksTotal,
		RefreshTotal,
		ScanDuration,
		KnownPeriods,
	)
}

// Mode labels a selection for the mode dimension
func Mode(merged bool) string {
	if merged {
		return "merge_all"
	}
	return "single"
}
