package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// MailGateway delivers rendered submissions through an HTTP mail-sending
// service. The send is not idempotent; the coordinator guards repeats.
type MailGateway struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

var _ ports.Deliverer = (*MailGateway)(nil)

// NewMailGateway registers the gateway endpoint and sender address.
func NewMailGateway(endpoint, apiKey, from string) *MailGateway {
	return &MailGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver posts the message to the gateway. Network failures and 5xx are
// transient; anything else is permanent.
func (g *MailGateway) Deliver(ctx context.Context, recipient, subject, body string, attachment []byte) error {
	if g.endpoint == "" || g.from == "" {
		return domain.Permanent("deliver", fmt.Errorf("mail gateway misconfigured"))
	}

	payload, err := json.Marshal(map[string]any{
		"from":       g.from,
		"to":         recipient,
		"subject":    subject,
		"body":       body,
		"attachment": base64.StdEncoding.EncodeToString(attachment),
	})
	if err != nil {
		return domain.Permanent("deliver", fmt.Errorf("marshal message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Permanent("deliver", fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Transient("deliver", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Transient("deliver", fmt.Errorf("gateway returned %s", resp.Status))
	default:
		return domain.Permanent("deliver", fmt.Errorf("gateway returned %s", resp.Status))
	}
}
