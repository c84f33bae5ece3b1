// Package worker contains the message-processing pipeline: the consumer
// loop that turns one inbound chat event into one committed ledger record
// or a well-defined failure.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"biabot/internal/domain"
	"biabot/internal/metrics"
	"biabot/internal/notify"
	"biabot/internal/validate"
)

// outcome is the terminal state of one pipeline run.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeUnauthenticated
	outcomeUninterpretable
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeUnauthenticated:
		return "unauthenticated"
	case outcomeUninterpretable:
		return "uninterpretable"
	}
	return "dead_letter"
}

// result carries a pipeline run's terminal state plus what to tell the user.
type result struct {
	outcome outcome
	reply   string // empty means nothing to send
	stage   string // failing stage, for logs
	err     error
}

// Pipeline drives one inbound event through authentication, optional text
// extraction, interpretation, validation, ledger submission and reply
// composition, then finalizes the queue entry. Stages are strictly
// sequential; any failure short-circuits to a terminal outcome.
type Pipeline struct {
	auth      domain.Authenticator
	extractor domain.TextExtractor
	interp    domain.Interpreter
	ledger    domain.Ledger
	notifier  domain.Notifier
	logger    *slog.Logger

	// Transient dead-letter-class failures are re-run in process up to
	// maxRetries times before the entry is rejected to the DLQ.
	maxRetries int
	retryDelay time.Duration

	now func() time.Time
}

type PipelineConfig struct {
	Auth       domain.Authenticator
	Extractor  domain.TextExtractor // nil disables image extraction
	Interp     domain.Interpreter
	Ledger     domain.Ledger
	Notifier   domain.Notifier
	Logger     *slog.Logger
	MaxRetries int
	RetryDelay time.Duration
	Now        func() time.Time // defaults to time.Now
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Pipeline{
		auth:       cfg.Auth,
		extractor:  cfg.Extractor,
		interp:     cfg.Interp,
		ledger:     cfg.Ledger,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		now:        cfg.Now,
	}
}

// Handle processes one delivery to exactly one terminal outcome. Every
// dequeued entry is either acknowledged or rejected to the dead-letter
// queue; the reply to the sender is best-effort and never changes that
// decision.
func (p *Pipeline) Handle(ctx context.Context, d domain.Delivery) {
	start := p.now()

	var event domain.InboundEvent
	if err := json.Unmarshal(d.Body(), &event); err != nil {
		// No sender address to reply to; park the entry for inspection.
		p.logger.Error("malformed queue entry", "err", err)
		p.finalize(ctx, d, "", result{outcome: outcomeDeadLetter, stage: "decode", err: err})
		return
	}

	res := p.process(ctx, event)

	for attempt := 1; res.outcome == outcomeDeadLetter && retryable(res.err) && attempt <= p.maxRetries; attempt++ {
		p.logger.Warn("retrying message",
			"attempt", attempt,
			"max", p.maxRetries,
			"stage", res.stage,
			"sender", event.From,
			"err", res.err,
		)
		if err := sleepCtx(ctx, p.retryDelay); err != nil {
			break
		}
		// Re-run every stage from scratch; the event is immutable and no
		// local state survives an attempt.
		res = p.process(ctx, event)
	}

	// A shutdown mid-flight is not a message fault. Leave the entry
	// unacknowledged; the broker redelivers it once the channel closes.
	if res.outcome == outcomeDeadLetter && errors.Is(res.err, context.Canceled) {
		p.logger.Info("processing interrupted by shutdown, entry left for redelivery",
			"stage", res.stage,
			"sender", event.From,
		)
		return
	}

	p.finalize(ctx, d, event.From, res)
	metrics.ProcessingSeconds.Observe(p.now().Sub(start).Seconds())
}

// process runs the stages once and reports the terminal state.
func (p *Pipeline) process(ctx context.Context, event domain.InboundEvent) result {
	// Authenticating. Each message re-authenticates; sessions are never
	// cached across messages.
	session, err := p.auth.Authenticate(ctx, event.From)
	if err != nil {
		if errors.Is(err, domain.ErrNotLinked) {
			return result{outcome: outcomeUnauthenticated, reply: notify.LinkingInstructions, stage: "authenticate", err: err}
		}
		return result{outcome: outcomeDeadLetter, reply: notify.RetryLater, stage: "authenticate", err: err}
	}

	// ExtractingText, only for image media.
	text := event.Text
	hadImage := false
	if event.HasImage() {
		if p.extractor == nil {
			p.logger.Warn("image received but extraction is disabled", "sender", event.From)
		} else {
			extracted, err := p.extractor.ExtractText(ctx, event.MediaURL, event.MediaType)
			if err != nil {
				return result{
					outcome: outcomeDeadLetter,
					reply:   notify.RetryLater,
					stage:   "extract",
					err:     &domain.ExtractionError{Err: err},
				}
			}
			text = extracted
			hadImage = true
		}
	}

	// Interpreting.
	draft, err := p.interp.Interpret(ctx, text, p.now())
	if err != nil {
		if errors.Is(err, domain.ErrUninterpretable) {
			return result{outcome: outcomeUninterpretable, reply: notify.RephraseGuidance, stage: "interpret", err: err}
		}
		return result{outcome: outcomeDeadLetter, reply: notify.RetryLater, stage: "interpret", err: err}
	}
	if hadImage {
		draft.HasReceipt = true
	}

	// Validating.
	tx, err := validate.Validate(draft)
	if err != nil {
		return result{outcome: outcomeDeadLetter, reply: notify.RetryLater, stage: "validate", err: err}
	}

	// Submitting.
	record, err := p.ledger.Submit(ctx, session.Token, tx)
	if err != nil {
		if errors.Is(err, domain.ErrNotLinked) {
			// Account unlinked between authentication and submission;
			// same guidance as an unlinked sender, still acknowledged.
			return result{outcome: outcomeUnauthenticated, reply: notify.LinkingInstructions, stage: "submit", err: err}
		}
		return result{outcome: outcomeDeadLetter, reply: notify.RetryLater, stage: "submit", err: err}
	}

	p.logger.Info("transaction persisted",
		"sender", event.From,
		"user", session.UserID,
		"record", record.ID,
		"type", domain.TypeLabel(tx.Type),
		"value", tx.Value.String(),
	)

	return result{outcome: outcomeSuccess, reply: notify.Confirmation(tx, session.UserName)}
}

// finalize sends the reply best-effort and settles the queue entry.
func (p *Pipeline) finalize(ctx context.Context, d domain.Delivery, sender string, res result) {
	if res.err != nil {
		p.logger.Error("pipeline stage failed",
			"stage", res.stage,
			"sender", sender,
			"outcome", res.outcome.String(),
			"err", res.err,
		)
	}

	if res.reply != "" && sender != "" {
		if err := p.notifier.Send(ctx, domain.ReplyMessage{To: sender, Body: res.reply}); err != nil {
			// Notification failures never change the finalization already
			// decided for the triggering outcome.
			p.logger.Error("reply delivery failed", "sender", sender, "err", err)
		}
	}

	var err error
	if res.outcome == outcomeDeadLetter {
		err = d.Reject()
	} else {
		err = d.Ack()
	}
	if err != nil {
		p.logger.Error("queue finalization failed", "outcome", res.outcome.String(), "err", err)
	}

	metrics.MessagesProcessed.WithLabelValues(res.outcome.String()).Inc()
	if res.stage != "" && res.err != nil {
		metrics.StageFailures.WithLabelValues(res.stage).Inc()
	}
}

// retryable reports whether a dead-letter-class failure is worth re-running:
// transport and backend faults are, deterministic validation failures are
// not.
func retryable(err error) bool {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return false
	}
	return err != nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
