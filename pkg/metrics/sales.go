package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SalesMetrics tracks sale throughput and stock reconciliation outcomes.
type SalesMetrics struct {
	created        *prometheus.CounterVec
	revenue        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	stockConflicts prometheus.Counter
}

// NewSalesMetrics registers the sales metrics on the provided registerer.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Sales recorded, by source and initial status.",
	}, []string{"source", "status"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_completed_revenue",
		Help: "Revenue of sales that entered the completed status.",
	}, []string{"payment_method"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_status_transitions_total",
		Help: "Sale status changes.",
	}, []string{"from", "to"})
	stockConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_stock_conflicts_total",
		Help: "Sale writes rejected for insufficient stock.",
	})
	reg.MustRegister(created, revenue, transitions, stockConflicts)
	return &SalesMetrics{
		created:        created,
		revenue:        revenue,
		transitions:    transitions,
		stockConflicts: stockConflicts,
	}
}

// SaleCreated counts a new sale.
func (m *SalesMetrics) SaleCreated(source, status string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
}

// RevenueCompleted adds amount to the completed revenue counter.
func (m *SalesMetrics) RevenueCompleted(paymentMethod string, amount float64) {
	if m == nil || m.revenue == nil || amount <= 0 {
		return
	}
	m.revenue.WithLabelValues(normalizeLabel(paymentMethod)).Add(amount)
}

// StatusChanged counts a status transition.
func (m *SalesMetrics) StatusChanged(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// StockConflict counts a write rolled back for insufficient stock.
func (m *SalesMetrics) StockConflict() {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.Inc()
}
