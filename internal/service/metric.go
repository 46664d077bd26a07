package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "pharmacy_inventory"

// Outcome label values.
const (
	outcomeSuccess  = "success"
	outcomeRefused  = "refused"
	outcomeConflict = "conflict"
	outcomeFailed   = "failed"
)

// Metrics holds the inventory counters exposed on /metrics.
type Metrics struct {
	Checkouts       *prometheus.CounterVec
	Deletions       *prometheus.CounterVec
	TxRetries       *prometheus.CounterVec
	LowStockProduct prometheus.Gauge
	SaleTotal       prometheus.Histogram
}

// NewMetrics registers the inventory metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "checkouts_total",
				Help:      "Checkouts by outcome.",
			},
			[]string{"outcome"},
		),
		Deletions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "product_deletions_total",
				Help:      "Product deletions by outcome.",
			},
			[]string{"outcome"},
		),
		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "tx_retries_total",
				Help:      "Transactions retried after a serialization failure or deadlock.",
			},
			[]string{"operation"},
		),
		LowStockProduct: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "low_stock_products",
				Help:      "Products below their minimum stock at the last evaluation.",
			},
		),
		SaleTotal: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      "sale_total_amount",
				Help:      "Total amount of committed sales.",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
	}
}

// outcomeOf maps an operation error to its outcome label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case isRefusal(err):
		return outcomeRefused
	case isConflict(err):
		return outcomeConflict
	default:
		return outcomeFailed
	}
}
