// Package sink receives "persist message" events from the relay. Writes are
// fire-and-forget: a failing sink never blocks or breaks message delivery.
package sink

import (
	"context"
	"time"
)

// Status of a stored message.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusSeen      = "seen"
)

// MessageSink stores relayed messages.
type MessageSink interface {
	Store(ctx context.Context, from, to, body, status string, ts time.Time) error
}

// Discard drops every message. Used when no sink DSN is configured.
type Discard struct{}

func (Discard) Store(context.Context, string, string, string, string, time.Time) error {
	return nil
}
