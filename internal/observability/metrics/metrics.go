package metrics

import "github.com/prometheus/client_golang/prometheus"

// BuyerMetrics exposes counters for buyer mutations and import batches.
type BuyerMetrics struct {
	mutationsTotal *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	importBatches  *prometheus.CounterVec
}

func NewBuyerMetrics(reg prometheus.Registerer) *BuyerMetrics {
	m := &BuyerMetrics{
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buyerleads",
			Subsystem: "buyers",
			Name:      "mutations_total",
			Help:      "Total buyer record mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buyerleads",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total import rows by outcome",
		}, []string{"outcome"}),
		importBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buyerleads",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Total import batches by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.mutationsTotal, m.importRows, m.importBatches)
	return m
}

func (m *BuyerMetrics) ObserveMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *BuyerMetrics) ObserveImportRows(inserted, failed int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("inserted").Add(float64(inserted))
	m.importRows.WithLabelValues("failed").Add(float64(failed))
}

func (m *BuyerMetrics) ObserveImportBatch(outcome string) {
	if m == nil {
		return
	}
	m.importBatches.WithLabelValues(outcome).Inc()
}
