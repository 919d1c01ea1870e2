package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initSagaMetrics(cfg Config) {
	m.sagaExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbox_saga_executions_total",
			Help: "Total number of saga executions by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.sagaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qbox_saga_duration_seconds",
			Help:    "Saga execution duration in seconds",
			Buckets: cfg.SagaDurationBuckets,
		},
		[]string{"outcome"},
	)

	m.sagaActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qbox_saga_active_count",
			Help: "Current number of in-flight saga executions",
		},
	)

	m.transactionDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbox_transaction_dispatches_total",
			Help: "Total number of transaction dispatches by outcome",
		},
		[]string{"outcome"},
	)

	m.transactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qbox_transaction_dispatch_duration_seconds",
			Help:    "Transaction dispatch latency in seconds",
			Buckets: cfg.TransactionDurationBuckets,
		},
		[]string{"outcome"},
	)

	m.compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbox_compensations_total",
			Help: "Total number of compensation dispatches by outcome",
		},
		[]string{"outcome"},
	)

	m.compensationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qbox_compensation_dispatch_duration_seconds",
			Help:    "Compensation dispatch latency in seconds",
			Buckets: cfg.TransactionDurationBuckets,
		},
		[]string{"outcome"},
	)

	m.compensationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qbox_compensation_retries_total",
			Help: "Total number of compensation retry attempts after a timeout",
		},
	)

	m.registry.MustRegister(
		m.sagaExecutions,
		m.sagaDuration,
		m.sagaActive,
		m.transactionDispatches,
		m.transactionDuration,
		m.compensations,
		m.compensationDuration,
		m.compensationRetries,
	)
}

// RecordSagaExecution records one saga's terminal outcome
// (ALL_SUCCESS, ALL_COMPENSATED, PARTIAL_COMPENSATION_FAILED).
func (m *Manager) RecordSagaExecution(outcome string) {
	if !m.enabled {
		return
	}
	m.sagaExecutions.WithLabelValues(outcome).Inc()
}

// RecordSagaDuration records total saga execution latency.
func (m *Manager) RecordSagaDuration(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.sagaDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncActiveSagas increments the in-flight saga gauge.
func (m *Manager) IncActiveSagas() {
	if !m.enabled {
		return
	}
	m.sagaActive.Inc()
}

// DecActiveSagas decrements the in-flight saga gauge.
func (m *Manager) DecActiveSagas() {
	if !m.enabled {
		return
	}
	m.sagaActive.Dec()
}

// RecordTransactionDispatch records one transaction dispatch outcome
// (success, failed; the coordinator counts a timed-out or unreachable
// transaction as failed).
func (m *Manager) RecordTransactionDispatch(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.transactionDispatches.WithLabelValues(outcome).Inc()
	m.transactionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCompensation records one compensation dispatch outcome (success, failed).
func (m *Manager) RecordCompensation(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.compensations.WithLabelValues(outcome).Inc()
	m.compensationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCompensationRetry records one compensation retry attempt.
func (m *Manager) RecordCompensationRetry() {
	if !m.enabled {
		return
	}
	m.compensationRetries.Inc()
}
