package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// Интерфейсы хранилищ, нужные циклам и обработчикам.
//
// Реализации живут в internal/repo и передаются явно при сборке —
// тесты подставляют in-memory фейки без живого соединения с БД.

// JobStore — очередь jobs.
type JobStore interface {
	// ClaimNext атомарно захватывает самый старый подходящий job.
	// Возвращает (nil, nil), если подходящих нет.
	ClaimNext(ctx context.Context, kind domain.JobKind) (*domain.Job, error)

	// MarkDone переводит job в DONE и очищает last_error.
	MarkDone(ctx context.Context, id uuid.UUID) error

	// Requeue возвращает job в QUEUED с новым run_at и текстом ошибки.
	Requeue(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error

	// MarkFailed переводит job в FAILED навсегда.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// EventStore — события для expand и notify.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	InsertOccurrences(ctx context.Context, events []domain.Event) error
}

// RecipientStore — выборка получателей уведомлений.
type RecipientStore interface {
	TeamMembers(ctx context.Context, teamID uuid.UUID) ([]domain.Member, error)
	TeamCoaches(ctx context.Context, teamID uuid.UUID) ([]domain.Member, error)
	ClubAccount(ctx context.Context, clubID uuid.UUID) (*domain.Member, error)
}

// PaymentStore — платежи и settlement.
type PaymentStore interface {
	ListPending(ctx context.Context) ([]domain.Payment, error)

	// Settle проводит один платёж в собственной транзакции.
	Settle(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementOutcome, error)
}
