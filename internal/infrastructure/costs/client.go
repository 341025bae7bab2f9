package costs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// Client talks to the external cost-prediction service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.CostPredictor = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Predict asks the service to estimate the cost of filing against a target
// for the given category.
func (c *Client) Predict(ctx context.Context, targetID string, category domain.Category) (ports.CostEstimate, error) {
	if c.endpoint == "" {
		return ports.CostEstimate{}, domain.Permanent("predict", fmt.Errorf("cost predictor unconfigured"))
	}

	payload := map[string]any{
		"target_id": targetID,
		"category":  string(category),
	}

	var resp struct {
		EstimatedCents int    `json:"estimated_cents"`
		Confidence     string `json:"confidence"`
	}

	if err := c.post(ctx, "/predict", payload, &resp); err != nil {
		return ports.CostEstimate{}, err
	}

	return ports.CostEstimate{
		EstimatedCents: resp.EstimatedCents,
		Confidence:     domain.Confidence(resp.Confidence),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Permanent("predict", fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return domain.Permanent("predict", fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient("predict", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Transient("predict", fmt.Errorf("unexpected status %s", resp.Status))
	default:
		return domain.Permanent("predict", fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.Transient("predict", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
