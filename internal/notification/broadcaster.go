package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trading-signals/internal/logger"
	"trading-signals/internal/metrics"
)

// Message kinds, used as the metrics label.
const (
	KindSignal  = "signal"
	KindClose   = "close"
	KindSummary = "summary"
)

// Broadcaster sends a text to every registered recipient with a bounded
// timeout. Failures are logged and counted; they never propagate as panics
// and callers may ignore the returned error.
type Broadcaster struct {
	notifier Notifier
	registry *Registry
	timeout  time.Duration
	prom     *metrics.Metrics
	log      zerolog.Logger
}

// NewBroadcaster creates a broadcaster. timeout <= 0 means 10s.
func NewBroadcaster(n Notifier, reg *Registry, timeout time.Duration, prom *metrics.Metrics, log zerolog.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Broadcaster{
		notifier: n,
		registry: reg,
		timeout:  timeout,
		prom:     prom,
		log:      log.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast delivers text to the registry's recipients.
func (b *Broadcaster) Broadcast(ctx context.Context, kind, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	msg := Message{Text: text, Recipients: b.registry.List()}
	if err := b.notifier.Send(ctx, msg); err != nil {
		b.prom.NotifyFailures.WithLabelValues(kind).Inc()
		log := logger.FromContext(ctx, b.log)
		log.Warn().
			Err(err).
			Str("kind", kind).
			Int("recipients", len(msg.Recipients)).
			Msg("delivery failed")
		return err
	}
	return nil
}
