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

// EventRepo — репозиторий для работы с событиями (occurrences).
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

const eventColumns = `id, series_id, occurrence_index, team_id, club_id, created_by,
	       creator_role, title, date, starts_at, ends_at, status, repeats,
	       repeat_until, reminder_sent, created_at`

// GetByID возвращает событие по ID.
func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.scanEvent(r.pool.QueryRow(ctx, query, id))
}

// ListSeries возвращает все occurrences серии по порядку индексов.
func (r *EventRepo) ListSeries(ctx context.Context, seriesID uuid.UUID) ([]domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE series_id = $1
		ORDER BY occurrence_index ASC
	`
	rows, err := r.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()
	return r.collectEvents(rows)
}

// InsertOccurrences вставляет occurrences одной пакетной операцией.
//
// Конфликты по уникальной паре (series_id, occurrence_index) молча
// игнорируются: именно это делает повторный запуск разворачивания серии
// безопасным — идентичность occurrence выводится из входных данных.
// Любая другая ошибка вставки поднимается наверх.
func (r *EventRepo) InsertOccurrences(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO events (id, series_id, occurrence_index, team_id, club_id, created_by,
		                    creator_role, title, date, starts_at, ends_at, status, repeats,
		                    repeat_until, reminder_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (series_id, occurrence_index) DO NOTHING
	`
	for i := range events {
		e := &events[i]
		batch.Queue(query,
			e.ID,
			e.SeriesID,
			e.OccurrenceIndex,
			e.TeamID,
			e.ClubID,
			e.CreatedBy,
			e.CreatorRole,
			e.Title,
			e.Date,
			e.StartsAt,
			e.EndsAt,
			e.Status,
			nullString(string(e.Repeats)),
			e.RepeatUntil,
			e.ReminderSent,
			e.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
	}
	return nil
}

// ListStartingWithin возвращает запланированные события, начинающиеся
// в окне [now, now+window), по которым ещё не отправлено напоминание.
func (r *EventRepo) ListStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'SCHEDULED'
		  AND reminder_sent = false
		  AND starts_at >= $1
		  AND starts_at < $2
		ORDER BY starts_at ASC
	`
	rows, err := r.pool.Query(ctx, query, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()
	return r.collectEvents(rows)
}

// MarkReminderSent устанавливает флаг идемпотентности напоминания.
// После этого событие никогда не попадёт в ListStartingWithin повторно.
func (r *EventRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events SET reminder_sent = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *EventRepo) collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		event, err := scanEventFrom(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *EventRepo) scanEvent(row pgx.Row) (*domain.Event, error) {
	event, err := scanEventFrom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return event, err
}

func scanEventFrom(row pgx.Row) (*domain.Event, error) {
	var event domain.Event
	var repeats *string

	err := row.Scan(
		&event.ID,
		&event.SeriesID,
		&event.OccurrenceIndex,
		&event.TeamID,
		&event.ClubID,
		&event.CreatedBy,
		&event.CreatorRole,
		&event.Title,
		&event.Date,
		&event.StartsAt,
		&event.EndsAt,
		&event.Status,
		&repeats,
		&event.RepeatUntil,
		&event.ReminderSent,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	if repeats != nil {
		event.Repeats = domain.Repeat(*repeats)
	}
	return &event, nil
}
