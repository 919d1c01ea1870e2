package saga

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sagaTracerName = "qbox.saga"

const (
	spanSagaExecute           = "saga.execute"
	spanTransactionDispatch   = "saga.transaction.dispatch"
	spanCompensationDispatch  = "saga.compensation.dispatch"
)

func sagaTracer() trace.Tracer {
	return otel.Tracer(sagaTracerName)
}
