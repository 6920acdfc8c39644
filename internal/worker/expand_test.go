package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

func seriesBase(seriesID uuid.UUID, day time.Time, repeats domain.Repeat, until time.Time) *domain.Event {
	return &domain.Event{
		ID:              uuid.New(),
		SeriesID:        seriesID,
		OccurrenceIndex: 0,
		TeamID:          uuid.New(),
		ClubID:          uuid.New(),
		CreatorRole:     domain.RoleCoach,
		Title:           "Evening practice",
		Date:            day,
		StartsAt:        day.Add(18 * time.Hour),
		EndsAt:          day.Add(19*time.Hour + 30*time.Minute),
		Status:          domain.EventStatusScheduled,
		Repeats:         repeats,
		RepeatUntil:     &until,
	}
}

func expandJob(t *testing.T, p domain.ExpandSeriesPayload) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.KindExpandSeries, p, time.Now())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestExpandHandler_WeeklySeries(t *testing.T) {
	seriesID := uuid.New()
	base := seriesBase(seriesID,
		date(2024, time.January, 1), domain.RepeatWeekly, date(2024, time.January, 22))
	events := newFakeEventStore(base)

	h := NewExpandHandler(events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := expandJob(t, domain.ExpandSeriesPayload{
		SeriesID:    seriesID,
		BaseEventID: base.ID,
		Repeats:     domain.RepeatWeekly,
		Until:       date(2024, time.January, 22),
	})

	if err := h.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Исходное + 08.01 + 15.01; 22.01 — строго за границей.
	all := events.seriesEvents(seriesID)
	if len(all) != 3 {
		t.Fatalf("expected 3 events in series, got %d", len(all))
	}

	byIndex := make(map[int]domain.Event, len(all))
	for _, e := range all {
		byIndex[e.OccurrenceIndex] = e
	}
	if !byIndex[1].Date.Equal(date(2024, time.January, 8)) {
		t.Errorf("occurrence 1: expected 2024-01-08, got %v", byIndex[1].Date)
	}
	if !byIndex[2].Date.Equal(date(2024, time.January, 15)) {
		t.Errorf("occurrence 2: expected 2024-01-15, got %v", byIndex[2].Date)
	}

	// Время суток и принадлежность переносятся из базового события.
	occ := byIndex[1]
	if occ.StartsAt.Hour() != 18 || occ.StartsAt.Minute() != 0 {
		t.Errorf("expected 18:00 start, got %v", occ.StartsAt)
	}
	if occ.TeamID != base.TeamID || occ.CreatorRole != base.CreatorRole {
		t.Error("occurrence must inherit team and creator role from base")
	}
}

func TestExpandHandler_Idempotent(t *testing.T) {
	seriesID := uuid.New()
	base := seriesBase(seriesID,
		date(2024, time.March, 4), domain.RepeatDaily, date(2024, time.March, 8))
	events := newFakeEventStore(base)

	h := NewExpandHandler(events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := expandJob(t, domain.ExpandSeriesPayload{
		SeriesID:    seriesID,
		BaseEventID: base.ID,
		Repeats:     domain.RepeatDaily,
		Until:       date(2024, time.March, 8),
	})

	// Повторное выполнение того же job (retry после частичного
	// прогона) не плодит дубликатов occurrence.
	for i := 0; i < 3; i++ {
		if err := h.Execute(context.Background(), job); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}

	if got := len(events.seriesEvents(seriesID)); got != 4 {
		t.Fatalf("expected 4 events after repeated runs, got %d", got)
	}
}

func TestExpandHandler_UnsafeMonthlyBase(t *testing.T) {
	seriesID := uuid.New()
	base := seriesBase(seriesID,
		date(2024, time.January, 31), domain.RepeatMonthly, date(2024, time.June, 1))
	events := newFakeEventStore(base)

	h := NewExpandHandler(events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := expandJob(t, domain.ExpandSeriesPayload{
		SeriesID:    seriesID,
		BaseEventID: base.ID,
		Repeats:     domain.RepeatMonthly,
		Until:       date(2024, time.June, 1),
	})

	if err := h.Execute(context.Background(), job); !errors.Is(err, domain.ErrUnsafeMonthlyDay) {
		t.Fatalf("expected ErrUnsafeMonthlyDay, got %v", err)
	}
	if got := len(events.seriesEvents(seriesID)); got != 1 {
		t.Errorf("no occurrences must be created, got %d", got-1)
	}
}

func TestExpandHandler_MissingBaseEvent(t *testing.T) {
	events := newFakeEventStore()

	h := NewExpandHandler(events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := expandJob(t, domain.ExpandSeriesPayload{
		SeriesID:    uuid.New(),
		BaseEventID: uuid.New(),
		Repeats:     domain.RepeatWeekly,
		Until:       date(2024, time.January, 22),
	})

	if err := h.Execute(context.Background(), job); !errors.Is(err, ErrEventGone) {
		t.Fatalf("expected ErrEventGone, got %v", err)
	}
}

func TestExpandHandler_RejectsNonBaseEvent(t *testing.T) {
	seriesID := uuid.New()
	occurrence := seriesBase(seriesID,
		date(2024, time.January, 8), domain.RepeatNone, date(2024, time.January, 22))
	occurrence.OccurrenceIndex = 2
	events := newFakeEventStore(occurrence)

	h := NewExpandHandler(events, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := expandJob(t, domain.ExpandSeriesPayload{
		SeriesID:    seriesID,
		BaseEventID: occurrence.ID,
		Repeats:     domain.RepeatWeekly,
		Until:       date(2024, time.January, 22),
	})

	if err := h.Execute(context.Background(), job); err == nil {
		t.Fatal("expected error for non-base event")
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
