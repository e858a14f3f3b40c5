// Package notification delivers signal, close and summary messages to
// external channels (Telegram, webhooks, the log).
package notification

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Message is one outbound notification. Text is Markdown. Recipients are
// channel-specific identifiers (Telegram chat IDs); an empty list means the
// channel's default audience.
type Message struct {
	Text       string   `json:"text"`
	Recipients []string `json:"recipients,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers a message. Returns error if delivery fails.
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogNotifier writes messages to the log (useful for development and the
// one-shot CLI).
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info().
		Strs("recipients", msg.Recipients).
		Str("text", msg.Text).
		Msg("notification")
	return nil
}

// Multi fans a message out to several notifiers. Every notifier is tried;
// the joined error reports the ones that failed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*WebhookNotifier)(nil)
)
