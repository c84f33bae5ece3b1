package queue

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// acknowledger is the subset of amqp.Acknowledger the delivery needs.
// Split out so tests can finalize without a live channel.
type acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

// amqpDelivery adapts one amqp.Delivery to domain.Delivery. Finalization is
// guarded: the first Ack or Reject wins, later calls are no-ops. The broker
// would drop the channel on a double acknowledgment, so the guard lives
// here rather than in every caller.
type amqpDelivery struct {
	body []byte
	tag  uint64
	ack  acknowledger

	mu        sync.Mutex
	finalized bool
}

func newAMQPDelivery(d amqp.Delivery) *amqpDelivery {
	return &amqpDelivery{body: d.Body, tag: d.DeliveryTag, ack: d.Acknowledger}
}

func (d *amqpDelivery) Body() []byte { return d.body }

func (d *amqpDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finalized {
		return nil
	}
	d.finalized = true
	return d.ack.Ack(d.tag, false)
}

func (d *amqpDelivery) Reject() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finalized {
		return nil
	}
	d.finalized = true
	// no requeue: the queue's dead-letter routing picks the entry up
	return d.ack.Nack(d.tag, false, false)
}
