package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// ExpandHandler разворачивает повторяющуюся серию событий.
//
// Обработчик естественно идемпотентен: идентичность occurrence —
// пара (series_id, occurrence_index), выводимая из входных данных,
// а конфликты по ней при вставке молча игнорируются хранилищем.
// Повторный запуск того же job даёт тот же итоговый набор occurrences.
type ExpandHandler struct {
	events EventStore
	logger *slog.Logger
}

// NewExpandHandler создаёт обработчик expand-series.
func NewExpandHandler(events EventStore, logger *slog.Logger) *ExpandHandler {
	return &ExpandHandler{events: events, logger: logger}
}

// Kind возвращает kind обработчика.
func (h *ExpandHandler) Kind() domain.JobKind {
	return domain.KindExpandSeries
}

// Execute выполняет разворачивание серии.
func (h *ExpandHandler) Execute(ctx context.Context, job *domain.Job) error {
	payload, err := job.DecodeExpandSeriesPayload()
	if err != nil {
		return err
	}

	base, err := h.events.GetByID(ctx, payload.BaseEventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: base event %s", ErrEventGone, payload.BaseEventID)
		}
		return fmt.Errorf("load base event: %w", err)
	}
	if base.OccurrenceIndex != 0 {
		return fmt.Errorf("event %s is not a series base (index %d)", base.ID, base.OccurrenceIndex)
	}

	// Месячная серия с базовой датой 29–31 — нарушение инварианта
	// создания события; SeriesDates поднимет ErrUnsafeMonthlyDay.
	dates, err := domain.SeriesDates(base.Date, payload.Repeats, payload.Until)
	if err != nil {
		return fmt.Errorf("compute series dates: %w", err)
	}

	if len(dates) == 0 {
		h.logger.Info("series produces no occurrences",
			"series_id", payload.SeriesID,
			"repeats", payload.Repeats,
			"until", payload.Until,
		)
		return nil
	}

	occurrences := make([]domain.Event, 0, len(dates))
	for i, date := range dates {
		occurrence := base.ShiftTo(date, i+1)
		occurrence.SeriesID = payload.SeriesID
		occurrences = append(occurrences, occurrence)
	}

	if err := h.events.InsertOccurrences(ctx, occurrences); err != nil {
		return fmt.Errorf("insert occurrences: %w", err)
	}

	h.logger.Info("series expanded",
		"series_id", payload.SeriesID,
		"occurrences", len(occurrences),
	)
	return nil
}
