// Package service holds the outbound adapters the grid engine talks to:
// the RabbitMQ notification publisher and its logging fallback.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/queue"
)

// Publisher publishes notification events to the durable
// squares.notifications queue.  It keeps one connection and channel open
// and redials lazily after a failure.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker once so misconfiguration shows up at
// startup.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{url: url, logger: logger}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.NotificationQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Notify implements grid.Notifier.  A failed publish drops the channel so
// the next call redials.
func (p *Publisher) Notify(ctx context.Context, ev queue.NotificationEvent) error {
	pub, err := Encode(ev, time.Now())
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		p.resetLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx,
		"",                      // default exchange
		queue.NotificationQueue, // routing key = queue name
		false,                   // mandatory
		false,                   // immediate
		pub,
	); err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// Encode builds the persistent AMQP message for an event.
func Encode(ev queue.NotificationEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    now.UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}, nil
}

// LogNotifier is the notifier used when no broker is reachable: events
// are logged and dropped.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev queue.NotificationEvent) error {
	l := n.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("notification (not delivered, broker disabled)",
		zap.String("type", string(ev.Type)),
		zap.String("game_id", ev.GameID),
		zap.String("to", ev.RecipientEmail))
	return nil
}
