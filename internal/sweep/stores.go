package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// EventStore — выборка событий для pre-event напоминаний.
// Реализуется repo.EventRepo.
type EventStore interface {
	// ListStartingWithin возвращает SCHEDULED события без отправленного
	// напоминания, начинающиеся в окне [now, now+window).
	ListStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error)

	// MarkReminderSent устанавливает флаг идемпотентности напоминания.
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}

// MemberStore — выборка получателей ежемесячного напоминания.
// Реализуется repo.MemberRepo.
type MemberStore interface {
	// ActiveDependentAthletes возвращает активных спортсменов
	// с клубным биллингом и push-адресом.
	ActiveDependentAthletes(ctx context.Context) ([]domain.Member, error)
}

// RecipientStore — выборка получателей pre-event напоминания.
// Реализуется repo.MemberRepo.
type RecipientStore interface {
	TeamMembers(ctx context.Context, teamID uuid.UUID) ([]domain.Member, error)
	EventCoaches(ctx context.Context, eventID uuid.UUID) ([]domain.Member, error)
	EventParticipants(ctx context.Context, eventID uuid.UUID) ([]domain.Member, error)
}
