package queue

import "testing"

type fakeAcknowledger struct {
	acks  int
	nacks int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	return nil
}

func TestDelivery_AckOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := &amqpDelivery{body: []byte("{}"), tag: 1, ack: ack}

	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := d.Ack(); err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if ack.acks != 1 {
		t.Fatalf("expected 1 ack on the wire, got %d", ack.acks)
	}
}

func TestDelivery_RejectAfterAckIsNoop(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := &amqpDelivery{body: nil, tag: 7, ack: ack}

	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := d.Reject(); err != nil {
		t.Fatalf("reject after ack: %v", err)
	}
	if ack.acks != 1 || ack.nacks != 0 {
		t.Fatalf("expected 1 ack / 0 nacks, got %d / %d", ack.acks, ack.nacks)
	}
}

func TestDelivery_RejectOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := &amqpDelivery{body: nil, tag: 3, ack: ack}

	if err := d.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := d.Reject(); err != nil {
		t.Fatalf("second reject: %v", err)
	}
	if ack.nacks != 1 {
		t.Fatalf("expected 1 nack on the wire, got %d", ack.nacks)
	}
}
