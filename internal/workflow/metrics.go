package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycheck",
		Subsystem: "workflow",
		Name:      "operations_total",
		Help:      "The total number of workflow operations by outcome",
	}, []string{"op", "status"})

	conflictRetryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycheck",
		Subsystem: "workflow",
		Name:      "conflict_retries_total",
		Help:      "The total number of operations re-run after a revision conflict",
	}, []string{"op"})

	partialWriteCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paycheck",
		Subsystem: "workflow",
		Name:      "partial_writes_total",
		Help:      "The total number of writes that could not be rolled back",
	}, []string{"op"})
)

func observe(op string, res Result) Result {
	operationsCounter.WithLabelValues(op, string(res.Status)).Inc()
	return res
}
