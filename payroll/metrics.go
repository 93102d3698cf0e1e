package payroll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	changeRequests     *prometheus.CounterVec
	recordsAppended    prometheus.Counter
	paymentsCalculated *prometheus.CounterVec
	paymentWarnings    *prometheus.CounterVec
	snapshotSyncs      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		changeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "change_requests_total",
			Help:      "Change requests applied, by outcome.",
		}, []string{"outcome"}),
		recordsAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "history_records_appended_total",
			Help:      "History records written by applied change requests.",
		}),
		paymentsCalculated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "load_payments_calculated_total",
			Help:      "Load payments calculated, by payment model.",
		}, []string{"kind"}),
		paymentWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "load_payment_warnings_total",
			Help:      "Load payments that produced a reasonableness warning, by payment model.",
		}, []string{"kind"}),
		snapshotSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driverpay",
			Name:      "snapshot_syncs_total",
			Help:      "Employee snapshot refreshes, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) changeRequest(outcome string, records int) {
	if m == nil {
		return
	}
	m.changeRequests.WithLabelValues(outcome).Inc()
	m.recordsAppended.Add(float64(records))
}

func (m *Metrics) payment(kind string, warned bool) {
	if m == nil {
		return
	}
	m.paymentsCalculated.WithLabelValues(kind).Inc()
	if warned {
		m.paymentWarnings.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) snapshotSync(outcome string) {
	if m == nil {
		return
	}
	m.snapshotSyncs.WithLabelValues(outcome).Inc()
}
