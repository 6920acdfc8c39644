package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/gateway"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultMonthlyTick = time.Hour
	defaultBatchSize   = 20
)

const monthlySweepName = "monthly-fee"

// MonthlySweeper раз в месяц напоминает зависимым спортсменам об оплате.
//
// Получатели: активные участники с ролью MEMBER и клубным биллингом
// (Independent=false), у которых зарегистрирован push-адрес.
//
// Момент срабатывания задаётся cron-расписанием "день месяца + час".
// Тик грубее расписания (раз в час), поэтому проход выполняется, когда
// расписание сработало внутри прошедшего тика. Сторож "последний
// отработанный месяц" держится в памяти процесса: рестарт в окне
// срабатывания может привести к повторной отправке, это принятый
// компромисс при at-least-once доставке.
type MonthlySweeper struct {
	members   MemberStore
	gateway   gateway.Gateway
	schedule  cron.Schedule
	tick      time.Duration
	batchSize int
	logger    *slog.Logger

	lastMonth string // "2006-01" последнего выполненного прохода
}

// MonthlyConfig — конфигурация MonthlySweeper.
type MonthlyConfig struct {
	// Members — источник получателей.
	Members MemberStore

	// Gateway — шлюз уведомлений.
	Gateway gateway.Gateway

	// Day — день месяца срабатывания (1-28).
	Day int

	// Hour — час срабатывания, UTC (0-23).
	Hour int

	// Tick — интервал опроса расписания (default: 1h).
	Tick time.Duration

	// BatchSize — размер конкурентной пачки fan-out (default: 20).
	BatchSize int

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// NewMonthlySweeper создаёт MonthlySweeper.
func NewMonthlySweeper(cfg MonthlyConfig) (*MonthlySweeper, error) {
	if cfg.Day < 1 || cfg.Day > 28 {
		return nil, fmt.Errorf("monthly sweep day must be 1-28, got %d", cfg.Day)
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return nil, fmt.Errorf("monthly sweep hour must be 0-23, got %d", cfg.Hour)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(fmt.Sprintf("0 %d %d * *", cfg.Hour, cfg.Day))
	if err != nil {
		return nil, fmt.Errorf("parse monthly schedule: %w", err)
	}

	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultMonthlyTick
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MonthlySweeper{
		members:   cfg.Members,
		gateway:   cfg.Gateway,
		schedule:  schedule,
		tick:      tick,
		batchSize: batchSize,
		logger:    telemetry.WithSweep(logger, monthlySweepName),
	}, nil
}

// Start запускает цикл sweep'а. Блокирует до отмены контекста.
func (s *MonthlySweeper) Start(ctx context.Context) {
	s.logger.Info("monthly sweep started",
		"tick", s.tick,
		"next_due", s.schedule.Next(time.Now().UTC()),
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monthly sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("monthly sweep pass failed", "error", err)
			}
		}
	}
}

// RunOnce выполняет один проход по состоянию на now.
// Возвращает число доставленных напоминаний (0, если срабатывание
// расписания не попало в прошедший тик или месяц уже отработан).
func (s *MonthlySweeper) RunOnce(ctx context.Context, now time.Time) (int, error) {
	if !s.due(now) {
		return 0, nil
	}

	month := now.Format("2006-01")
	if s.lastMonth == month {
		s.logger.Debug("monthly sweep already ran", "month", month)
		return 0, nil
	}

	athletes, err := s.members.ActiveDependentAthletes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load dependent athletes: %w", err)
	}

	pushes := make([]gateway.Push, 0, len(athletes))
	for _, m := range athletes {
		if !m.HasPushToken() {
			continue
		}
		pushes = append(pushes, composeFeeReminder(m, month))
	}

	delivered := gateway.FanOut(ctx, s.gateway, pushes, s.batchSize, s.logger)

	// Месяц считается отработанным даже при частичных сбоях доставки:
	// повторный полный прогон разослал бы дубликаты успешным получателям.
	s.lastMonth = month
	telemetry.SweepRuns.WithLabelValues(monthlySweepName).Inc()

	s.logger.Info("monthly fee reminders sent",
		"month", month,
		"recipients", len(pushes),
		"delivered", delivered,
	)
	return delivered, nil
}

// due проверяет, сработало ли расписание внутри прошедшего тика.
func (s *MonthlySweeper) due(now time.Time) bool {
	next := s.schedule.Next(now.Add(-s.tick))
	return !next.After(now)
}

// composeFeeReminder — текст напоминания для участника.
func composeFeeReminder(m domain.Member, month string) gateway.Push {
	return gateway.Push{
		Token: m.PushToken,
		Title: "Membership fee reminder",
		Body:  "Your monthly club fee is due. Please top up your balance.",
		Data: map[string]string{
			"member_id": m.ID.String(),
			"month":     month,
		},
	}
}
