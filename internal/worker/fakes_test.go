package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// --- In-memory фейки хранилищ ---

// fakeJobStore повторяет контракт JobRepo, включая уважение контекста:
// любой вызов с отменённым контекстом отвергается, как это сделал бы
// настоящий драйвер БД.
type fakeJobStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*domain.Job
	staleAfter time.Duration
}

func newFakeJobStore(jobs ...*domain.Job) *fakeJobStore {
	s := &fakeJobStore{
		jobs:       make(map[uuid.UUID]*domain.Job),
		staleAfter: 5 * time.Minute,
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) ClaimNext(ctx context.Context, kind domain.JobKind) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	// Брошенные RUNNING возвращаются в очередь перед claim.
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusRunning && j.UpdatedAt.Before(now.Add(-s.staleAfter)) {
			j.Status = domain.JobStatusQueued
			j.LastError = "requeued: stale RUNNING"
			j.UpdatedAt = now
		}
	}

	var next *domain.Job
	for _, j := range s.jobs {
		if j.Kind != kind || j.Status != domain.JobStatusQueued || j.RunAt.After(now) {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}

	next.Status = domain.JobStatusRunning
	next.Attempts++
	next.UpdatedAt = now
	claimed := *next
	return &claimed, nil
}

func (s *fakeJobStore) MarkDone(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	j.Status = domain.JobStatusDone
	j.LastError = ""
	j.UpdatedAt = time.Now()
	return nil
}

func (s *fakeJobStore) Requeue(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	j.Status = domain.JobStatusQueued
	j.RunAt = runAt
	j.LastError = lastError
	j.UpdatedAt = time.Now()
	return nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	j.Status = domain.JobStatusFailed
	j.LastError = lastError
	j.UpdatedAt = time.Now()
	return nil
}

func (s *fakeJobStore) get(id uuid.UUID) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type fakeEventStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.Event
	byKey  map[string]uuid.UUID // (series_id, occurrence_index) → id
}

func newFakeEventStore(events ...*domain.Event) *fakeEventStore {
	s := &fakeEventStore{
		events: make(map[uuid.UUID]*domain.Event),
		byKey:  make(map[string]uuid.UUID),
	}
	for _, e := range events {
		s.events[e.ID] = e
		s.byKey[occurrenceKey(e.SeriesID, e.OccurrenceIndex)] = e.ID
	}
	return s
}

func occurrenceKey(seriesID uuid.UUID, index int) string {
	return fmt.Sprintf("%s/%d", seriesID, index)
}

func (s *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

// InsertOccurrences повторяет контракт EventRepo: конфликт по
// (series_id, occurrence_index) молча игнорируется.
func (s *fakeEventStore) InsertOccurrences(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range events {
		e := events[i]
		key := occurrenceKey(e.SeriesID, e.OccurrenceIndex)
		if _, exists := s.byKey[key]; exists {
			continue
		}
		s.events[e.ID] = &e
		s.byKey[key] = e.ID
	}
	return nil
}

func (s *fakeEventStore) seriesEvents(seriesID uuid.UUID) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, e := range s.events {
		if e.SeriesID == seriesID {
			out = append(out, *e)
		}
	}
	return out
}

type fakeRecipientStore struct {
	members []domain.Member
	coaches []domain.Member
	club    *domain.Member
}

func (s *fakeRecipientStore) TeamMembers(context.Context, uuid.UUID) ([]domain.Member, error) {
	return s.members, nil
}

func (s *fakeRecipientStore) TeamCoaches(context.Context, uuid.UUID) ([]domain.Member, error) {
	return s.coaches, nil
}

func (s *fakeRecipientStore) ClubAccount(context.Context, uuid.UUID) (*domain.Member, error) {
	return s.club, nil
}

type fakePaymentStore struct {
	mu       sync.Mutex
	pending  []domain.Payment
	outcomes map[uuid.UUID]*domain.SettlementOutcome
	errs     map[uuid.UUID]error
	settled  []uuid.UUID
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		outcomes: make(map[uuid.UUID]*domain.SettlementOutcome),
		errs:     make(map[uuid.UUID]error),
	}
}

func (s *fakePaymentStore) ListPending(context.Context) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payment(nil), s.pending...), nil
}

func (s *fakePaymentStore) Settle(_ context.Context, id uuid.UUID) (*domain.SettlementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settled = append(s.settled, id)
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	return s.outcomes[id], nil
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
