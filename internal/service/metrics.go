package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики денежных операций. Нулевой *Metrics ничего не считает.
type Metrics struct {
	purchases     *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	compensations *prometheus.CounterVec
	tailFailures  *prometheus.CounterVec
	reconciled    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecocoin",
			Name:      "purchases_total",
			Help:      "Попытки покупки по коду результата.",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecocoin",
			Name:      "settlements_total",
			Help:      "Подтверждения доставки по коду результата.",
		}, []string{"result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecocoin",
			Name:      "saga_compensations_total",
			Help:      "Выполненные компенсации шагов.",
		}, []string{"saga", "step", "ok"}),
		tailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecocoin",
			Name:      "saga_tail_failures_total",
			Help:      "Невыполненные шаги после точки фиксации.",
		}, []string{"saga", "step"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecocoin",
			Name:      "reconciled_records_total",
			Help:      "Записи, восстановленные сверкой.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.purchases, m.settlements, m.compensations, m.tailFailures, m.reconciled)
	}
	return m
}

func (m *Metrics) purchase(result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(result).Inc()
}

func (m *Metrics) settlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}

func (m *Metrics) compensation(saga, step string, ok bool) {
	if m == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.compensations.WithLabelValues(saga, step, label).Inc()
}

func (m *Metrics) tailFailed(saga, step string) {
	if m == nil {
		return
	}
	m.tailFailures.WithLabelValues(saga, step).Inc()
}

func (m *Metrics) reconcile(kind string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(kind).Inc()
}
