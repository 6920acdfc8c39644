package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

type fakeEventStore struct {
	mu      sync.Mutex
	events  []domain.Event
	markErr error
}

func (s *fakeEventStore) ListStartingWithin(_ context.Context, now time.Time, window time.Duration) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := now.Add(window)
	var out []domain.Event
	for _, e := range s.events {
		if e.Status != domain.EventStatusScheduled || e.ReminderSent {
			continue
		}
		if e.StartsAt.Before(now) || !e.StartsAt.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeEventStore) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markErr != nil {
		return s.markErr
	}
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].ReminderSent = true
			return nil
		}
	}
	return nil
}

type fakeMemberStore struct {
	athletes []domain.Member
	err      error
}

func (s *fakeMemberStore) ActiveDependentAthletes(context.Context) ([]domain.Member, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.athletes, nil
}

type fakeRecipientStore struct {
	members      []domain.Member
	coaches      []domain.Member
	participants []domain.Member
}

func (s *fakeRecipientStore) TeamMembers(context.Context, uuid.UUID) ([]domain.Member, error) {
	return s.members, nil
}

func (s *fakeRecipientStore) EventCoaches(context.Context, uuid.UUID) ([]domain.Member, error) {
	return s.coaches, nil
}

func (s *fakeRecipientStore) EventParticipants(context.Context, uuid.UUID) ([]domain.Member, error) {
	return s.participants, nil
}

// member — участник с push-адресом для тестов.
func member(name string) domain.Member {
	return domain.Member{
		ID:        uuid.New(),
		Name:      name,
		Role:      domain.RoleMember,
		Active:    true,
		PushToken: "token-" + name,
	}
}

// athlete — зависимый спортсмен (получатель ежемесячного напоминания).
func athlete(name string) domain.Member {
	m := member(name)
	m.Independent = false
	return m
}
