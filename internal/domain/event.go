package domain

import "time"

// InboundEvent is one unit of work on the queue: a single WhatsApp message
// as published by the ingress gateway. Immutable once enqueued.
type InboundEvent struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ReceivedAt returns the event timestamp as wall-clock time.
func (e InboundEvent) ReceivedAt() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// HasImage reports whether the event carries image media that needs text
// extraction before interpretation.
func (e InboundEvent) HasImage() bool {
	return e.MediaURL != "" && len(e.MediaType) >= 6 && e.MediaType[:6] == "image/"
}

// ReplyMessage is an outbound text addressed to the original sender.
type ReplyMessage struct {
	To   string
	Body string
}
