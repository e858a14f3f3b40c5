package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API, one
// sendMessage call per recipient chat.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	log      zerolog.Logger
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// baseURL: API root, "" for api.telegram.org
func NewTelegramNotifier(botToken, baseURL string, log zerolog.Logger) *TelegramNotifier {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "telegram").Logger(),
	}
}

// Send posts msg to every recipient. A failing chat does not stop delivery
// to the others.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, chatID := range msg.Recipients {
		if err := t.sendOne(ctx, chatID, msg.Text); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramNotifier) sendOne(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, apiErr.Description)
	}

	t.log.Debug().Str("chat_id", chatID).Msg("sent")
	return nil
}
