package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

func testWorker(jobs JobStore, registry *Registry, opts ...func(*Config)) *Worker {
	cfg := Config{
		Jobs:         jobs,
		Registry:     registry,
		MaxAttempts:  3,
		RetryBackoff: 30 * time.Second,
		ExecTimeout:  time.Second,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

func queuedJob(t *testing.T, kind domain.JobKind) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(kind, domain.NotifyEventPayload{}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestWorker_ProcessOne_Success(t *testing.T) {
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent})

	w := testWorker(jobs, registry)
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusDone {
		t.Errorf("expected DONE, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
	if got.LastError != "" {
		t.Errorf("expected empty last error, got %q", got.LastError)
	}
}

func TestWorker_ProcessOne_EmptyQueue(t *testing.T) {
	jobs := newFakeJobStore()
	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent})

	w := testWorker(jobs, registry)
	// Пустая очередь — тихий no-op, без ошибок и без паник.
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)
}

func TestWorker_ProcessOne_FutureJobNotClaimed(t *testing.T) {
	job := queuedJob(t, domain.KindNotifyEvent)
	job.RunAt = time.Now().Add(time.Hour)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent})

	w := testWorker(jobs, registry)
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusQueued {
		t.Errorf("future job must stay QUEUED, got %s", got.Status)
	}
	if got.Attempts != 0 {
		t.Errorf("future job must not be claimed, attempts=%d", got.Attempts)
	}
}

func TestWorker_RetryOrFail_Requeues(t *testing.T) {
	execErr := errors.New("handler exploded")
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent, err: execErr})

	w := testWorker(jobs, registry)
	before := time.Now()
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("expected QUEUED after retry, got %s", got.Status)
	}
	if got.LastError != execErr.Error() {
		t.Errorf("expected last error %q, got %q", execErr, got.LastError)
	}
	// RunAt сдвинут на backoff в будущее.
	minRunAt := before.Add(w.backoff - time.Second)
	if got.RunAt.Before(minRunAt) {
		t.Errorf("expected run_at ≥ %v, got %v", minRunAt, got.RunAt)
	}
}

func TestWorker_RetryOrFail_FailsAfterMaxAttempts(t *testing.T) {
	execErr := errors.New("handler exploded")
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent, err: execErr})

	w := testWorker(jobs, registry, func(cfg *Config) {
		cfg.MaxAttempts = 2
		cfg.RetryBackoff = time.Nanosecond
	})

	// Попытка 1: возврат в очередь. Попытка 2: потолок, FAILED.
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)
	if got := jobs.get(job.ID); got.Status != domain.JobStatusQueued {
		t.Fatalf("after attempt 1 expected QUEUED, got %s", got.Status)
	}

	time.Sleep(time.Millisecond)
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("after attempt 2 expected FAILED, got %s", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", got.Attempts)
	}
	if got.LastError != execErr.Error() {
		t.Errorf("expected last error %q, got %q", execErr, got.LastError)
	}
}

type slowHandler struct {
	kind  domain.JobKind
	delay time.Duration
}

func (h *slowHandler) Kind() domain.JobKind { return h.kind }

// Execute намеренно игнорирует контекст: моделирует обработчик,
// зависший за пределами таймаута.
func (h *slowHandler) Execute(context.Context, *domain.Job) error {
	time.Sleep(h.delay)
	return nil
}

func TestWorker_Dispatch_Timeout(t *testing.T) {
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&slowHandler{kind: domain.KindNotifyEvent, delay: time.Second})

	w := testWorker(jobs, registry, func(cfg *Config) {
		cfg.ExecTimeout = 20 * time.Millisecond
	})

	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("timed out job must be requeued, got %s", got.Status)
	}
	if !strings.Contains(got.LastError, ErrExecutionTimeout.Error()) {
		t.Fatalf("expected timeout in last error, got %q", got.LastError)
	}
}

func TestWorker_Dispatch_UnknownKindRetries(t *testing.T) {
	// Job с kind без обработчика в этом процессе: ошибка диспетчеризации
	// ведёт по обычному пути retry, а не теряет job в RUNNING.
	job := queuedJob(t, domain.KindSettlePayments)
	jobs := newFakeJobStore(job)

	w := testWorker(jobs, NewRegistry())
	w.processOne(context.Background(), domain.KindSettlePayments, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("expected QUEUED, got %s", got.Status)
	}
	if got.LastError == "" {
		t.Error("expected dispatch error recorded")
	}
}

func TestWorker_ClaimExclusivity(t *testing.T) {
	// Несколько конкурирующих claim'ов одного job: ровно один выигрывает.
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := jobs.ClaimNext(context.Background(), domain.KindNotifyEvent)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if j != nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if claimed != 1 {
		t.Fatalf("expected exactly 1 successful claim, got %d", claimed)
	}
	if got := jobs.get(job.ID); got.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", got.Attempts)
	}
}

type blockingHandler struct {
	kind    domain.JobKind
	release chan struct{}
}

func (h *blockingHandler) Kind() domain.JobKind { return h.kind }

func (h *blockingHandler) Execute(context.Context, *domain.Job) error {
	<-h.release
	return nil
}

func waitForStatus(t *testing.T, jobs *fakeJobStore, id uuid.UUID, status domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for jobs.get(id).Status != status {
		if time.Now().After(deadline) {
			t.Fatalf("job never reached %s, stuck in %s", status, jobs.get(id).Status)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorker_ShutdownInFlightRequeuesJob(t *testing.T) {
	// Shutdown с job в полёте: job обязан вернуться в QUEUED, даже
	// если контекст воркера уже отменён и хранилище отвергает вызовы
	// с таким контекстом.
	job := queuedJob(t, domain.KindNotifyEvent)
	jobs := newFakeJobStore(job)

	handler := &blockingHandler{kind: domain.KindNotifyEvent, release: make(chan struct{})}
	defer close(handler.release)

	registry := NewRegistry()
	registry.Register(handler)

	w := testWorker(jobs, registry, func(cfg *Config) {
		cfg.ExecTimeout = 10 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processOne(ctx, domain.KindNotifyEvent, w.logger)
	}()

	waitForStatus(t, jobs, job.ID, domain.JobStatusRunning)
	cancel()
	<-done

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("expected QUEUED after shutdown, got %s", got.Status)
	}
	if got.LastError == "" {
		t.Error("expected shutdown reason in last error")
	}
	if strings.Contains(got.LastError, ErrExecutionTimeout.Error()) {
		t.Errorf("shutdown must not be recorded as execution timeout, got %q", got.LastError)
	}
}

func TestWorker_StaleRunningIsReclaimed(t *testing.T) {
	// Job, застрявший в RUNNING после падения процесса (устаревший
	// updated_at), возвращается в очередь при следующем claim.
	job := queuedJob(t, domain.KindNotifyEvent)
	job.Status = domain.JobStatusRunning
	job.Attempts = 1
	job.UpdatedAt = time.Now().Add(-time.Hour)
	jobs := newFakeJobStore(job)

	registry := NewRegistry()
	registry.Register(&nopHandler{kind: domain.KindNotifyEvent})

	w := testWorker(jobs, registry)
	w.processOne(context.Background(), domain.KindNotifyEvent, w.logger)

	got := jobs.get(job.ID)
	if got.Status != domain.JobStatusDone {
		t.Fatalf("expected stale job reclaimed and finished, got %s", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected attempts 2 after reclaim, got %d", got.Attempts)
	}
}

func TestWorker_FreshRunningIsNotStolen(t *testing.T) {
	job := queuedJob(t, domain.KindNotifyEvent)
	job.Status = domain.JobStatusRunning
	job.Attempts = 1
	job.UpdatedAt = time.Now()
	jobs := newFakeJobStore(job)

	claimed, err := jobs.ClaimNext(context.Background(), domain.KindNotifyEvent)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatal("recently claimed RUNNING job must not be reclaimed")
	}
}

func TestWorker_ClaimOrdering(t *testing.T) {
	// Захват идёт в порядке run_at: самый ранний job первым.
	later := queuedJob(t, domain.KindNotifyEvent)
	later.RunAt = time.Now().Add(-time.Minute)
	earlier := queuedJob(t, domain.KindNotifyEvent)
	earlier.RunAt = time.Now().Add(-time.Hour)
	jobs := newFakeJobStore(later, earlier)

	first, err := jobs.ClaimNext(context.Background(), domain.KindNotifyEvent)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first == nil || first.ID != earlier.ID {
		t.Fatal("expected the earlier job to be claimed first")
	}
}
