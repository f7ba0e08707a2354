package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer listens on NotificationQueue, renders each event and hands it
// to a Mailer.  It reconnects with exponential backoff until its context
// is cancelled.
type Consumer struct {
	url    string
	mailer Mailer
	logger *zap.Logger
}

// NewConsumer builds a Consumer.  mailer must be non-nil.
func NewConsumer(url string, mailer Mailer, logger *zap.Logger) *Consumer {
	if mailer == nil {
		panic("nil mailer passed to NewConsumer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, mailer: mailer, logger: logger}
}

// Run blocks until ctx is done.  Broker failures are logged and retried;
// the returned error is always ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("notification consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("notification consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("notification consumer: listening", zap.String("queue", NotificationQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.logger.Error("notification consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes, renders and sends one message body.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", ev.Type, ev.RecipientEmail, err)
	}
	c.logger.Debug("notification delivered",
		zap.String("type", string(ev.Type)),
		zap.String("game_id", ev.GameID),
		zap.String("to", ev.RecipientEmail))
	return nil
}
