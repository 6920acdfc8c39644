package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
//
// Таблица jobs — единственная точка координации между продюсерами
// и воркерами, поэтому все мутации статуса выражены одним SQL-запросом:
// несколько процессов могут работать с одной таблицей одновременно.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, kind, payload, status, attempts, run_at, last_error, created_at, updated_at`

// staleRunningAfter — порог, после которого RUNNING job считается
// брошенным: воркер умер между claim и финализацией. Порог должен быть
// заметно больше таймаута выполнения job, чтобы не трогать живые jobs.
const staleRunningAfter = 5 * time.Minute

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, kind, payload, status, attempts, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.Payload,
		job.Status,
		job.Attempts,
		job.RunAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// ClaimNext атомарно захватывает самый старый по run_at подходящий job.
//
// Выборка и смена статуса — один запрос: FOR UPDATE SKIP LOCKED гарантирует,
// что два конкурентных вызова (в том числе из разных процессов) никогда
// не увидят один и тот же job. Attempts увеличивается при каждом claim.
//
// Перед claim брошенные RUNNING возвращаются в очередь: процесс,
// упавший после захвата, не должен навсегда оставить job в RUNNING.
// Повторное выполнение после такого возврата безопасно благодаря
// идемпотентности обработчиков.
//
// Возвращает (nil, nil), если подходящих jobs нет — это не ошибка.
func (r *JobRepo) ClaimNext(ctx context.Context, kind domain.JobKind) (*domain.Job, error) {
	cutoff := time.Now().UTC().Add(-staleRunningAfter)
	if _, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'QUEUED', last_error = 'requeued: stale RUNNING', updated_at = now()
		WHERE status = 'RUNNING' AND updated_at < $1
	`, cutoff); err != nil {
		return nil, fmt.Errorf("requeue stale jobs: %w", err)
	}

	query := `
		WITH next AS (
			SELECT id
			FROM jobs
			WHERE kind = $1 AND status = 'QUEUED' AND run_at <= now()
			ORDER BY run_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs
		SET status = 'RUNNING', attempts = attempts + 1, updated_at = now()
		WHERE id IN (SELECT id FROM next)
		RETURNING ` + jobColumns

	job, err := r.scanJob(r.pool.QueryRow(ctx, query, kind))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next %s: %w", kind, err)
	}
	return job, nil
}

// MarkDone переводит job в DONE и очищает last_error.
func (r *JobRepo) MarkDone(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'DONE', last_error = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Requeue возвращает job в QUEUED с новым run_at (backoff) и текстом ошибки.
func (r *JobRepo) Requeue(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'QUEUED', run_at = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, id, runAt, nullString(lastError))
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed переводит job в FAILED навсегда.
// Такой job виден в `relay jobs list --status FAILED` и ждёт ручного решения.
func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'FAILED', last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, nullString(lastError))
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает jobs с фильтрацией по kind и статусу.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::text IS NULL OR kind = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Kind)),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	Kind   domain.JobKind
	Status domain.JobStatus
	Limit  int
	Offset int
}

// --- Helpers ---

func (r *JobRepo) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var lastError *string

	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Payload,
		&job.Status,
		&job.Attempts,
		&job.RunAt,
		&lastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if lastError != nil {
		job.LastError = *lastError
	}
	return &job, nil
}

func (r *JobRepo) scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	var job domain.Job
	var lastError *string

	err := rows.Scan(
		&job.ID,
		&job.Kind,
		&job.Payload,
		&job.Status,
		&job.Attempts,
		&job.RunAt,
		&lastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if lastError != nil {
		job.LastError = *lastError
	}
	return &job, nil
}
