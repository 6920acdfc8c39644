package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/gateway"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultPreEventTick      = time.Minute
	defaultPreEventLookahead = 30 * time.Minute
)

const preEventSweepName = "pre-event"

// PreEventSweeper напоминает о событиях незадолго до их начала.
//
// Каждый тик выбираются SCHEDULED события, начинающиеся в окне
// lookahead и ещё не получившие напоминания. Получатели: участники
// команды, тренеры события и явно записанные на событие — одно
// напоминание на человека.
//
// Идемпотентность обеспечивает флаг reminder_sent: он выставляется
// после рассылки (в том числе частично неудавшейся), поэтому событие
// никогда не рассылается дважды. Отказ доставки одному получателю —
// не повод беспокоить остальных повторно.
type PreEventSweeper struct {
	events     EventStore
	recipients RecipientStore
	gateway    gateway.Gateway
	lookahead  time.Duration
	tick       time.Duration
	batchSize  int
	logger     *slog.Logger
}

// PreEventConfig — конфигурация PreEventSweeper.
type PreEventConfig struct {
	// Events — источник событий.
	Events EventStore

	// Recipients — источник получателей.
	Recipients RecipientStore

	// Gateway — шлюз уведомлений.
	Gateway gateway.Gateway

	// Lookahead — окно до начала события (default: 30m).
	Lookahead time.Duration

	// Tick — интервал опроса (default: 1m).
	Tick time.Duration

	// BatchSize — размер конкурентной пачки fan-out (default: 20).
	BatchSize int

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// NewPreEventSweeper создаёт PreEventSweeper.
func NewPreEventSweeper(cfg PreEventConfig) *PreEventSweeper {
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = defaultPreEventLookahead
	}

	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultPreEventTick
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PreEventSweeper{
		events:     cfg.Events,
		recipients: cfg.Recipients,
		gateway:    cfg.Gateway,
		lookahead:  lookahead,
		tick:       tick,
		batchSize:  batchSize,
		logger:     telemetry.WithSweep(logger, preEventSweepName),
	}
}

// Start запускает цикл sweep'а. Блокирует до отмены контекста.
func (s *PreEventSweeper) Start(ctx context.Context) {
	s.logger.Info("pre-event sweep started",
		"tick", s.tick,
		"lookahead", s.lookahead,
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pre-event sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("pre-event sweep pass failed", "error", err)
			}
		}
	}
}

// RunOnce выполняет один проход по состоянию на now.
// Возвращает число событий, по которым отправлено напоминание.
func (s *PreEventSweeper) RunOnce(ctx context.Context, now time.Time) (int, error) {
	upcoming, err := s.events.ListStartingWithin(ctx, now, s.lookahead)
	if err != nil {
		return 0, fmt.Errorf("list upcoming events: %w", err)
	}
	if len(upcoming) == 0 {
		return 0, nil
	}

	reminded := 0
	var lastErr error

	for i := range upcoming {
		event := &upcoming[i]
		if err := s.remind(ctx, event); err != nil {
			s.logger.Error("event reminder failed",
				"event_id", event.ID,
				"error", err,
			)
			lastErr = err
			continue
		}
		reminded++
	}

	telemetry.SweepRuns.WithLabelValues(preEventSweepName).Inc()

	if lastErr != nil {
		return reminded, fmt.Errorf("reminded %d of %d events, last error: %w",
			reminded, len(upcoming), lastErr)
	}
	return reminded, nil
}

// remind рассылает напоминание по одному событию и выставляет флаг.
func (s *PreEventSweeper) remind(ctx context.Context, event *domain.Event) error {
	recipients, err := s.resolveRecipients(ctx, event)
	if err != nil {
		return err
	}

	if len(recipients) > 0 {
		push := gateway.Push{
			Title: "Starting soon",
			Body: fmt.Sprintf("%s starts at %s",
				event.Title, event.StartsAt.Format("15:04")),
			Data: map[string]string{
				"event_id": event.ID.String(),
				"team_id":  event.TeamID.String(),
			},
		}

		pushes := make([]gateway.Push, 0, len(recipients))
		for _, m := range recipients {
			p := push
			p.Token = m.PushToken
			pushes = append(pushes, p)
		}

		delivered := gateway.FanOut(ctx, s.gateway, pushes, s.batchSize, s.logger)
		s.logger.Info("event reminder fanned out",
			"event_id", event.ID,
			"recipients", len(pushes),
			"delivered", delivered,
		)
	}

	// Флаг ставится и при частичных сбоях доставки: повторный прогон
	// события дублировал бы напоминание успешным получателям.
	if err := s.events.MarkReminderSent(ctx, event.ID); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// resolveRecipients собирает получателей напоминания по событию.
func (s *PreEventSweeper) resolveRecipients(ctx context.Context, event *domain.Event) ([]domain.Member, error) {
	members, err := s.recipients.TeamMembers(ctx, event.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load team members: %w", err)
	}

	coaches, err := s.recipients.EventCoaches(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load event coaches: %w", err)
	}
	members = append(members, coaches...)

	participants, err := s.recipients.EventParticipants(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load event participants: %w", err)
	}
	members = append(members, participants...)

	deduped := domain.DedupMembers(members)

	addressable := deduped[:0]
	for _, m := range deduped {
		if m.HasPushToken() {
			addressable = append(addressable, m)
		}
	}
	return addressable, nil
}
