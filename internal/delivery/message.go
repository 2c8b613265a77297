// Package delivery turns poll events and reminder intents into chat
// messages and hands them to a transport without blocking the caller.
package delivery

import (
	"context"
	"log/slog"
)

// Kind classifies an outbound message.
type Kind string

const (
	KindPollCreated Kind = "poll_created"
	KindPollUpdated Kind = "poll_updated"
	KindPollClosed  Kind = "poll_closed"
	KindReminder    Kind = "reminder"
)

// Message is a rendered notification. An empty RecipientID posts to the
// channel; otherwise the text is sent as a direct message.
type Message struct {
	Kind        Kind   `json:"kind"`
	PollID      string `json:"poll_id"`
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text"`
	// DedupKey identifies messages that must be delivered at most once.
	DedupKey string `json:"dedup_key,omitempty"`
}

// Direct reports whether the message goes to a single participant.
func (m Message) Direct() bool {
	return m.RecipientID != ""
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogTransport writes messages to a logger. It is used when no chat
// platform is configured.
type LogTransport struct {
	Logger *slog.Logger
}

// Send logs msg.
func (t LogTransport) Send(ctx context.Context, msg Message) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target := "channel:" + msg.ChannelID
	if msg.Direct() {
		target = "user:" + msg.RecipientID
	}
	logger.InfoContext(ctx, "delivery message",
		"kind", string(msg.Kind),
		"poll_id", msg.PollID,
		"target", target,
		"text", msg.Text,
	)
	return nil
}
