package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики подсистемы фоновых jobs.
var (
	// JobsClaimed — количество захваченных jobs по kind.
	JobsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_jobs_claimed_total",
		Help: "Jobs claimed by workers",
	}, []string{"kind"})

	// JobsCompleted — количество успешно завершённых jobs.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_jobs_completed_total",
		Help: "Jobs finished in DONE status",
	}, []string{"kind"})

	// JobsRetried — количество возвратов в очередь с backoff.
	JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_jobs_retried_total",
		Help: "Jobs requeued for retry",
	}, []string{"kind"})

	// JobsFailed — количество jobs, ушедших в FAILED навсегда.
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_jobs_failed_total",
		Help: "Jobs finished in FAILED status",
	}, []string{"kind"})

	// JobDuration — длительность выполнения обработчика.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_job_duration_seconds",
		Help:    "Handler execution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// TicksSkipped — пропущенные тики (предыдущий ещё выполняется).
	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_ticks_skipped_total",
		Help: "Loop ticks skipped because the previous tick is still running",
	}, []string{"loop"})

	// PushSent — результаты отправки уведомлений в шлюз.
	PushSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_push_sent_total",
		Help: "Push notifications handed to the gateway",
	}, []string{"result"})

	// PaymentsSettled — исходы settlement по результату.
	PaymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_payments_settled_total",
		Help: "Payment settlement outcomes",
	}, []string{"result"})

	// SweepRuns — выполненные проходы sweep'ов.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sweep_runs_total",
		Help: "Completed sweep passes",
	}, []string{"sweep"})
)
