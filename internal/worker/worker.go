package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultPollInterval = 3 * time.Second
	defaultMaxAttempts  = 5
	defaultBackoff      = 30 * time.Second
	defaultExecTimeout  = 30 * time.Second
)

// Worker запускает по одному циклу опроса на каждый kind из реестра.
//
// Каждый цикл на тике захватывает не более одного job; несколько
// экземпляров Worker (в том числе в разных процессах) безопасно
// работают с одной таблицей — взаимное исключение обеспечивает
// атомарность ClaimNext, а не память процесса.
type Worker struct {
	jobs     JobStore
	registry *Registry

	intervals map[domain.JobKind]time.Duration

	maxAttempts int
	backoff     time.Duration
	execTimeout time.Duration

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	// Jobs — очередь jobs.
	Jobs JobStore

	// Registry — реестр обработчиков. Циклы запускаются
	// только для зарегистрированных kinds.
	Registry *Registry

	// Intervals — тик цикла по kind (default: 3s).
	Intervals map[domain.JobKind]time.Duration

	// MaxAttempts — потолок попыток до FAILED (default: 5).
	MaxAttempts int

	// RetryBackoff — фиксированная задержка перед retry (default: 30s).
	RetryBackoff time.Duration

	// ExecTimeout — таймаут выполнения одного job (default: 30s).
	ExecTimeout time.Duration

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	execTimeout := cfg.ExecTimeout
	if execTimeout <= 0 {
		execTimeout = defaultExecTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		jobs:        cfg.Jobs,
		registry:    registry,
		intervals:   cfg.Intervals,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		execTimeout: execTimeout,
		logger:      logger,
	}
}

// Start запускает циклы опроса для всех зарегистрированных kinds.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	kinds := w.registry.Kinds()
	w.logger.Info("starting worker",
		"kinds", len(kinds),
		"max_attempts", w.maxAttempts,
		"backoff", w.backoff,
		"exec_timeout", w.execTimeout,
	)

	for _, kind := range kinds {
		interval := w.intervals[kind]
		if interval <= 0 {
			interval = defaultPollInterval
		}

		w.wg.Add(1)
		go func(kind domain.JobKind, interval time.Duration) {
			defer w.wg.Done()
			w.pollLoop(ctx, kind, interval)
		}(kind, interval)
	}
}

// Stop останавливает Worker и дожидается завершения циклов.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// pollLoop — цикл опроса одного kind.
//
// Тик пропускается, если предыдущий ещё выполняется: состояние
// "занят" — собственный atomic цикла, а не глобальный флаг, поэтому
// несколько циклов (и несколько воркеров в тестах) не мешают друг другу.
func (w *Worker) pollLoop(ctx context.Context, kind domain.JobKind, interval time.Duration) {
	logger := telemetry.WithKind(w.logger, string(kind))
	logger.Info("poll loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var inFlight atomic.Bool

	for {
		select {
		case <-ctx.Done():
			logger.Info("poll loop stopped")
			return
		case <-ticker.C:
			if !inFlight.CompareAndSwap(false, true) {
				telemetry.TicksSkipped.WithLabelValues(string(kind)).Inc()
				logger.Debug("tick skipped, previous still running")
				continue
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer inFlight.Store(false)
				w.processOne(ctx, kind, logger)
			}()
		}
	}
}

// processOne захватывает и выполняет не более одного job.
func (w *Worker) processOne(ctx context.Context, kind domain.JobKind, logger *slog.Logger) {
	job, err := w.jobs.ClaimNext(ctx, kind)
	if err != nil {
		logger.Error("claim failed", "error", err)
		return
	}
	if job == nil {
		return
	}

	telemetry.JobsClaimed.WithLabelValues(string(kind)).Inc()
	jobLogger := telemetry.WithJobID(logger, job.ID.String())
	jobLogger.Info("job claimed", "attempt", job.Attempts)

	start := time.Now()
	execErr := w.dispatch(ctx, job)
	telemetry.JobDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if execErr != nil {
		w.retryOrFail(ctx, job, execErr, jobLogger)
		return
	}
	w.complete(ctx, job, jobLogger)
}

// dispatch выполняет job через обработчик под таймаутом.
//
// По истечении таймаута job считается неудавшимся для retry, даже
// если обработчик ещё работает: доработавший в фоне вызов безопасен
// благодаря идемпотентности обработчиков.
func (w *Worker) dispatch(ctx context.Context, job *domain.Job) error {
	handler, err := w.registry.Get(job.Kind)
	if err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(ctx, w.execTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handler.Execute(execCtx, job)
	}()

	select {
	case err := <-done:
		return err
	case <-execCtx.Done():
		// Отмена родителя (shutdown) — не таймаут: job возвращается
		// в очередь с настоящей причиной.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("worker shutting down: %w", err)
		}
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, w.execTimeout)
	}
}

// finalizeTimeout — предел на запись финального статуса job.
const finalizeTimeout = 5 * time.Second

// finalizeCtx — контекст для финализации job (DONE / QUEUED / FAILED).
//
// Отвязан от отмены родителя: при shutdown захваченный job обязан
// вернуться в очередь, иначе он навсегда останется в RUNNING —
// обычный Requeue с отменённым контекстом хранилище бы отвергло.
func finalizeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

// complete переводит job в DONE.
func (w *Worker) complete(ctx context.Context, job *domain.Job, logger *slog.Logger) {
	ctx, cancel := finalizeCtx(ctx)
	defer cancel()

	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		logger.Error("mark done failed", "error", err)
		return
	}
	telemetry.JobsCompleted.WithLabelValues(string(job.Kind)).Inc()
	logger.Info("job done", "attempt", job.Attempts)
}

// retryOrFail решает судьбу упавшего job.
//
// Пока попытки не исчерпаны — возврат в QUEUED с фиксированным backoff;
// иначе FAILED навсегда. Ошибка обработчика (включая shutdown во время
// выполнения) никогда не оставляет job висеть в RUNNING.
func (w *Worker) retryOrFail(ctx context.Context, job *domain.Job, execErr error, logger *slog.Logger) {
	ctx, cancel := finalizeCtx(ctx)
	defer cancel()

	if job.CanRetry(w.maxAttempts) {
		runAt := time.Now().UTC().Add(w.backoff)
		if err := w.jobs.Requeue(ctx, job.ID, runAt, execErr.Error()); err != nil {
			logger.Error("requeue failed", "error", err)
			return
		}
		telemetry.JobsRetried.WithLabelValues(string(job.Kind)).Inc()
		logger.Warn("job requeued",
			"attempt", job.Attempts,
			"max_attempts", w.maxAttempts,
			"run_at", runAt,
			"error", execErr,
		)
		return
	}

	if err := w.jobs.MarkFailed(ctx, job.ID, execErr.Error()); err != nil {
		logger.Error("mark failed failed", "error", err)
		return
	}
	telemetry.JobsFailed.WithLabelValues(string(job.Kind)).Inc()
	logger.Error("job failed permanently",
		"attempt", job.Attempts,
		"error", execErr,
	)
}
