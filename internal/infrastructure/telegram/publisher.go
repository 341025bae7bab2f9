package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"recordwatch/internal/ports"
)

// Publisher emits fire-and-forget operational events to a Telegram chat via
// the bot API. Callers log and ignore failures.
type Publisher struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot token and chat identifier.
func NewPublisher(botToken, chatID string) *Publisher {
	return &Publisher{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish posts the event as a plain-text message.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload map[string]string) error {
	if p.botToken == "" || p.chatID == "" || p.client == nil {
		return fmt.Errorf("telegram publisher misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", p.botToken)
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", formatEvent(eventType, payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatEvent(eventType string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", eventType)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, payload[k])
	}
	return b.String()
}
