package domain

import (
	"context"
	"time"
)

// Authenticator resolves a WhatsApp number to a backend session.
// Returns ErrNotLinked when the number has no linked account; transport and
// backend errors are returned as *SubmissionError.
type Authenticator interface {
	Authenticate(ctx context.Context, whatsAppNumber string) (AuthSession, error)
}

// TextExtractor turns image media into plain text. Only invoked for events
// whose media type is an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, mediaURL, mediaType string) (string, error)
}

// Interpreter turns free text into a transaction draft. today is used as
// the default transaction date when the text names none. Returns
// ErrUninterpretable when no usable draft can be produced.
type Interpreter interface {
	Interpret(ctx context.Context, text string, today time.Time) (TransactionDraft, error)
}

// Ledger submits a validated transaction under an authenticated session.
// A 404 response maps to ErrNotLinked (session stale mid-flight); other
// failures are *SubmissionError.
type Ledger interface {
	Submit(ctx context.Context, token string, tx ValidatedTransaction) (LedgerRecord, error)
}

// Notifier delivers a text reply to a sender address. Best-effort: callers
// log failures but never change their finalization decision because of one.
type Notifier interface {
	Send(ctx context.Context, msg ReplyMessage) error
}

// Delivery is one dequeued entry. Ack and Reject finalize it; exactly one
// of them must be called, and repeated calls must be no-ops.
type Delivery interface {
	Body() []byte
	Ack() error
	// Reject discards the entry without requeue, routing it to the
	// dead-letter queue.
	Reject() error
}

// Publisher places an inbound event on the durable queue.
type Publisher interface {
	Publish(ctx context.Context, event InboundEvent) error
}
