// Package analytics publishes chat activity events to RabbitMQ for
// downstream reporting. Publishing is best-effort: a broker outage must
// never affect a live conversation.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event is one chat activity record.
type Event struct {
	Kind           string    `json:"kind"`
	ClientID       string    `json:"client_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Query          string    `json:"query,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	KindQuery = "query"
	KindReset = "reset"
	KindError = "error"
)

// Publisher emits events to a fanout exchange. A nil Publisher is a valid
// no-op, used when no broker is configured.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends one event, stamping the timestamp if unset. Failures are
// logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("marshal analytics event", "err", err)
		return
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   ev.Timestamp,
	})
	if err != nil {
		p.logger.Warn("publish analytics event", "kind", ev.Kind, "err", err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
