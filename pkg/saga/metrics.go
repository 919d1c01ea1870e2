package saga

import "time"

// MetricsRecorder records saga runtime metrics. Satisfied by
// pkg/metrics.Manager; a nop implementation is used when metrics are
// disabled or under test.
type MetricsRecorder interface {
	RecordSagaExecution(outcome string)
	RecordSagaDuration(outcome string, duration time.Duration)
	IncActiveSagas()
	DecActiveSagas()
	RecordTransactionDispatch(outcome string, duration time.Duration)
	RecordCompensation(outcome string, duration time.Duration)
	RecordCompensationRetry()
}

type nopMetricsRecorder struct{}

func (n *nopMetricsRecorder) RecordSagaExecution(outcome string)                              {}
func (n *nopMetricsRecorder) RecordSagaDuration(outcome string, duration time.Duration)       {}
func (n *nopMetricsRecorder) IncActiveSagas()                                                 {}
func (n *nopMetricsRecorder) DecActiveSagas()                                                 {}
func (n *nopMetricsRecorder) RecordTransactionDispatch(outcome string, duration time.Duration) {}
func (n *nopMetricsRecorder) RecordCompensation(outcome string, duration time.Duration)        {}
func (n *nopMetricsRecorder) RecordCompensationRetry()                                         {}
