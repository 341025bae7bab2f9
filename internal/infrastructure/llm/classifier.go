package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recordwatch/internal/config"
	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

// Classifier implements ports.SemanticClassifier backed by OpenAI-compatible
// chat APIs. The model is asked for a single JSON object.
type Classifier struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.SemanticClassifier = (*Classifier)(nil)

// NewClassifier builds a client from configuration.
func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	Target     string `json:"target"`
	Category   string `json:"category"`
	Severity   int    `json:"severity"`
	Virality   int    `json:"virality"`
	Confidence string `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// Classify sends the headline and truncated body plus the known target names
// and decodes the model's JSON verdict.
func (c *Classifier) Classify(ctx context.Context, headline, body string, targets []string) (domain.ClassificationResult, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.ClassificationResult{}, domain.Permanent("classify", fmt.Errorf("classifier misconfigured"))
	}

	userPrompt := fmt.Sprintf(
		"Known agencies: %s\n\nHeadline: %s\n\nBody: %s\n\n"+
			"Respond with one JSON object: {\"target\": \"<agency name or unknown>\", "+
			"\"category\": \"ois|death_in_custody|use_of_force|pursuit|misconduct|protest|other\", "+
			"\"severity\": 1-10, \"virality\": 1-10, \"confidence\": \"high|medium|low\", \"rationale\": \"...\"}",
		strings.Join(targets, "; "), headline, body)

	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": userPrompt},
		},
	})
	if err != nil {
		return domain.ClassificationResult{}, domain.Permanent("classify", fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.ClassificationResult{}, domain.Permanent("classify", fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ClassificationResult{}, domain.Transient("classify", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return domain.ClassificationResult{}, domain.Transient("classify", fmt.Errorf("classifier returned %s", resp.Status))
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ClassificationResult{}, domain.Permanent("classify",
			fmt.Errorf("classifier returned %s: %s", resp.Status, strings.TrimSpace(string(raw))))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return domain.ClassificationResult{}, domain.Transient("classify", fmt.Errorf("decode response: %w", err))
	}
	if len(chat.Choices) == 0 {
		return domain.ClassificationResult{}, domain.Transient("classify", fmt.Errorf("empty completion"))
	}

	var v verdict
	content := extractJSON(chat.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return domain.ClassificationResult{}, domain.Transient("classify", fmt.Errorf("decode verdict: %w", err))
	}

	matched := v.Target
	if strings.EqualFold(matched, "unknown") {
		matched = ""
	}

	return domain.ClassificationResult{
		Category:      domain.Category(v.Category),
		Severity:      domain.ClampScore(v.Severity),
		Virality:      domain.ClampScore(v.Virality),
		Confidence:    domain.Confidence(strings.ToLower(v.Confidence)),
		Method:        domain.MethodSemantic,
		MatchedTarget: matched,
		Rationale:     v.Rationale,
	}, nil
}

// extractJSON tolerates models that wrap the object in prose or code fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You classify policing-incident news coverage."
	}
	return prompt
}
