// Package queue wraps the RabbitMQ connection behind an explicit component
// with an open/close lifecycle. The work queue is durable and configured to
// route rejected entries to a durable dead-letter queue for operator
// inspection.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"biabot/internal/config"
	"biabot/internal/domain"
)

// Broker holds the AMQP connection and channel shared by all consumers and
// publishers of one process. Construct once at startup, Close on shutdown.
type Broker struct {
	cfg    config.QueueConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger

	// done releases the consume adapter goroutine once the broker shuts
	// down, so a blocked hand-off to departed workers does not leak.
	done      chan struct{}
	closeOnce sync.Once
}

// Open dials the broker and declares the work queue and its dead-letter
// queue. Rejected (nack, no-requeue) entries are routed to the DLQ via the
// default exchange.
func Open(cfg config.QueueConfig, logger *slog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.DLQName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare dead-letter queue %s: %w", cfg.DLQName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQName,
	}
	if _, err := ch.QueueDeclare(cfg.Name, true, false, false, false, args); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Name, err)
	}

	logger.Info("broker connected", "queue", cfg.Name, "dlq", cfg.DLQName)

	return &Broker{cfg: cfg, conn: conn, ch: ch, logger: logger, done: make(chan struct{})}, nil
}

func (b *Broker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// NotifyClose reports an unexpected broker disconnect.
func (b *Broker) NotifyClose() <-chan *amqp.Error {
	return b.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Consume starts delivering entries from the work queue with manual
// acknowledgment. Prefetch bounds the number of unacknowledged entries a
// worker may hold at once.
func (b *Broker) Consume(consumerTag string) (<-chan domain.Delivery, error) {
	if err := b.ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	raw, err := b.ch.Consume(b.cfg.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", b.cfg.Name, err)
	}

	out := make(chan domain.Delivery)
	go forward(raw, out, b.done)
	return out, nil
}

// forward hands raw deliveries to the workers, abandoning any delivery
// still in hand when done closes. Unfinalized deliveries are redelivered
// by the broker after the channel closes.
func forward(raw <-chan amqp.Delivery, out chan<- domain.Delivery, done <-chan struct{}) {
	defer close(out)
	for d := range raw {
		select {
		case out <- newAMQPDelivery(d):
		case <-done:
			return
		}
	}
}

// Publish places an inbound event on the work queue as a persistent JSON
// message.
func (b *Broker) Publish(ctx context.Context, event domain.InboundEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = b.ch.PublishWithContext(ctx, "", b.cfg.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.cfg.Name, err)
	}
	return nil
}
