package gateway

import (
	"context"
	"errors"
)

// Ошибки шлюза.
var (
	// ErrNoRecipient — у уведомления нет push-адреса.
	// Получатели без адреса должны отфильтровываться до вызова Send.
	ErrNoRecipient = errors.New("push has no recipient token")

	// ErrGatewayUnavailable — шлюз недоступен (нет соединения).
	ErrGatewayUnavailable = errors.New("notification gateway unavailable")
)

// Push — одно уведомление одному получателю.
type Push struct {
	// Token — push-адрес устройства получателя.
	Token string `json:"token"`

	// Title — заголовок уведомления.
	Title string `json:"title"`

	// Body — текст уведомления.
	Body string `json:"body"`

	// Data — произвольные данные для мобильного клиента.
	Data map[string]string `json:"data,omitempty"`
}

// Gateway — интерфейс шлюза уведомлений.
//
// Send отправляет одно уведомление одному получателю. Результат
// относится только к этому получателю: ошибка не говорит ничего
// о доставке остальным.
type Gateway interface {
	Send(ctx context.Context, push Push) error
}

// MaskToken маскирует push-адрес для логов.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
