package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология шлюза уведомлений.
const (
	// ExchangePush — обменник исходящих уведомлений.
	ExchangePush = "relay.push"

	// QueuePushRequested — очередь сервиса доставки.
	QueuePushRequested = "push.requested"

	// RoutingKeyRequested — ключ маршрутизации уведомлений.
	RoutingKeyRequested = "requested"
)

// AMQPGateway публикует уведомления в RabbitMQ для сервиса доставки.
//
// Сообщения персистентные: уведомление переживает рестарт брокера.
// Подтверждение доставки конечному устройству остаётся за сервисом
// доставки — для воркера успешная публикация и есть успех Send.
type AMQPGateway struct {
	conn   *Connection
	logger *slog.Logger
}

// NewAMQPGateway создаёт шлюз поверх соединения и объявляет топологию.
func NewAMQPGateway(conn *Connection, logger *slog.Logger) (*AMQPGateway, error) {
	g := &AMQPGateway{conn: conn, logger: logger}

	if err := g.setupTopology(); err != nil {
		return nil, fmt.Errorf("setup push topology: %w", err)
	}
	return g, nil
}

// pushMessage — формат сообщения для сервиса доставки.
type pushMessage struct {
	ID        string    `json:"id"`
	Push      Push      `json:"push"`
	Timestamp time.Time `json:"timestamp"`
}

// Send публикует одно уведомление.
func (g *AMQPGateway) Send(ctx context.Context, push Push) error {
	if push.Token == "" {
		return ErrNoRecipient
	}

	msg := pushMessage{
		ID:        uuid.New().String(),
		Push:      push,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	return g.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			ExchangePush,
			RoutingKeyRequested,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish push: %w", err)
		}

		g.logger.Debug("push published",
			"message_id", msg.ID,
			"recipient", MaskToken(push.Token),
			"title", push.Title,
		)

		return nil
	})
}

// setupTopology объявляет обменник, очередь и привязку.
func (g *AMQPGateway) setupTopology() error {
	return g.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			ExchangePush, // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangePush, err)
		}

		_, err = ch.QueueDeclare(
			QueuePushRequested, // name
			true,               // durable
			false,              // delete when unused
			false,              // exclusive
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueuePushRequested, err)
		}

		err = ch.QueueBind(
			QueuePushRequested,
			RoutingKeyRequested,
			ExchangePush,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", QueuePushRequested, err)
		}

		return nil
	})
}
