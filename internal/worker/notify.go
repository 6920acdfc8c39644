package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/gateway"
	"github.com/shaiso/Relay/internal/repo"
)

// NotifyHandler рассылает push-уведомления по событию.
//
// Множество получателей зависит от роли создателя:
//   - тренер  → участники команды + аккаунт клуба
//   - клуб    → участники команды + тренеры
//   - иначе   → только участники команды
//
// Отказ доставки одному получателю изолирован: job успешен, если
// fan-out дошёл до конца без setup-ошибки (например, событие исчезло).
type NotifyHandler struct {
	events     EventStore
	recipients RecipientStore
	gateway    gateway.Gateway
	batchSize  int
	logger     *slog.Logger
}

// NewNotifyHandler создаёт обработчик notify.
func NewNotifyHandler(events EventStore, recipients RecipientStore, gw gateway.Gateway, batchSize int, logger *slog.Logger) *NotifyHandler {
	if batchSize < 1 {
		batchSize = 20
	}
	return &NotifyHandler{
		events:     events,
		recipients: recipients,
		gateway:    gw,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Kind возвращает kind обработчика.
func (h *NotifyHandler) Kind() domain.JobKind {
	return domain.KindNotifyEvent
}

// Execute выполняет рассылку.
func (h *NotifyHandler) Execute(ctx context.Context, job *domain.Job) error {
	payload, err := job.DecodeNotifyEventPayload()
	if err != nil {
		return err
	}

	event, err := h.events.GetByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: event %s", ErrEventGone, payload.EventID)
		}
		return fmt.Errorf("load event: %w", err)
	}

	recipients, err := h.resolveRecipients(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		h.logger.Info("no addressable recipients", "event_id", event.ID)
		return nil
	}

	push := eventPush(event, "New event", fmt.Sprintf(
		"%s — %s at %s",
		event.Title,
		event.Date.Format("Mon, 2 Jan"),
		event.StartsAt.Format("15:04"),
	))

	pushes := pushesFor(recipients, push)
	delivered := gateway.FanOut(ctx, h.gateway, pushes, h.batchSize, h.logger)

	h.logger.Info("event notification fanned out",
		"event_id", event.ID,
		"recipients", len(pushes),
		"delivered", delivered,
	)
	return nil
}

// resolveRecipients собирает получателей по роли создателя события.
func (h *NotifyHandler) resolveRecipients(ctx context.Context, event *domain.Event) ([]domain.Member, error) {
	members, err := h.recipients.TeamMembers(ctx, event.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load team members: %w", err)
	}

	switch event.CreatorRole {
	case domain.RoleCoach:
		club, err := h.recipients.ClubAccount(ctx, event.ClubID)
		if err != nil {
			return nil, fmt.Errorf("load club account: %w", err)
		}
		if club != nil {
			members = append(members, *club)
		}

	case domain.RoleClub:
		coaches, err := h.recipients.TeamCoaches(ctx, event.TeamID)
		if err != nil {
			return nil, fmt.Errorf("load team coaches: %w", err)
		}
		members = append(members, coaches...)
	}

	return domain.DedupMembers(members), nil
}

// eventPush собирает уведомление по событию.
func eventPush(event *domain.Event, title, body string) gateway.Push {
	return gateway.Push{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"event_id": event.ID.String(),
			"team_id":  event.TeamID.String(),
		},
	}
}

// pushesFor размножает уведомление по получателям.
func pushesFor(members []domain.Member, push gateway.Push) []gateway.Push {
	pushes := make([]gateway.Push, 0, len(members))
	for _, m := range members {
		p := push
		p.Token = m.PushToken
		pushes = append(pushes, p)
	}
	return pushes
}
