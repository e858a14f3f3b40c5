package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// webhookEvent is the JSON body posted for every message.
type webhookEvent struct {
	Text       string    `json:"text"`
	Recipients []string  `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// WebhookNotifier posts each message, recipients included, as one JSON
// event. Fan-out to the recipients is left to the receiving service.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    zerolog.Logger
}

// NewWebhookNotifier returns a notifier posting to url. The per-request
// deadline comes from the caller's context; the client timeout only bounds
// calls made without one.
func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// Send posts msg. Any non-2xx answer is an error carrying the start of the
// response body.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	recipients := msg.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	body, err := json.Marshal(webhookEvent{
		Text:       msg.Text,
		Recipients: recipients,
		SentAt:     w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook: encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	w.log.Debug().Int("recipients", len(recipients)).Msg("event posted")
	return nil
}
