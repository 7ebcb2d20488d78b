package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks order lifecycle activity.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	oversold    *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
}

// NewOrderMetrics registers order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Applied order status transitions by event and resulting status.",
	}, []string{"event", "status"})
	oversold := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_oversold_total",
		Help: "Inventory decrements clamped at zero.",
	}, []string{"mode"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Payment reconciliation outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, oversold, reconciled)
	return &OrderMetrics{
		transitions: transitions,
		oversold:    oversold,
		reconciled:  reconciled,
	}
}

// IncTransition records one applied status transition.
func (m *OrderMetrics) IncTransition(event, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(status)).Inc()
}

// IncOversold records one clamped inventory decrement.
func (m *OrderMetrics) IncOversold(mode string) {
	if m == nil || m.oversold == nil {
		return
	}
	m.oversold.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncReconciled records one payment reconciliation outcome.
func (m *OrderMetrics) IncReconciled(outcome string) {
	if m == nil || m.reconciled == nil {
		return
	}
	m.reconciled.WithLabelValues(normalizeLabel(outcome)).Inc()
}
