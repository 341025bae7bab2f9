package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"recordwatch/internal/domain"
	"recordwatch/internal/scanner"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// HTMLFeedScanner crawls a configured listing page and extracts candidate
// items with per-source CSS selectors.
type HTMLFeedScanner struct {
	client *http.Client
}

// NewHTMLFeedScanner wires an HTTP client; defaults to a 20s timeout.
func NewHTMLFeedScanner(client *http.Client) *HTMLFeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLFeedScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (s *HTMLFeedScanner) Name() string {
	return "htmlfeed"
}

// Scan fetches the feed page and extracts one candidate per item selector
// match. Items without a resolvable link are dropped.
func (s *HTMLFeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if req.URL == "" {
		return nil, domain.Permanent("scan", fmt.Errorf("source %s has no url", req.SourceID))
	}
	if req.Selectors.Item == "" {
		return nil, domain.Permanent("scan", fmt.Errorf("source %s has no item selector", req.SourceID))
	}

	doc, err := s.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceID, err)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, domain.Permanent("scan", fmt.Errorf("invalid source url %s: %w", req.URL, err))
	}

	var items []domain.CandidateItem
	seen := map[string]struct{}{}

	doc.Find(req.Selectors.Item).Each(func(i int, sel *goquery.Selection) {
		item, ok := parseItem(sel, req, base)
		if !ok {
			return
		}
		if _, dup := seen[item.ExternalURL]; dup {
			return
		}
		seen[item.ExternalURL] = struct{}{}
		items = append(items, item)
	})

	return items, nil
}

func (s *HTMLFeedScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, domain.Permanent("fetch", err)
	}
	req.Header.Set("User-Agent", "recordwatch/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.Transient("fetch", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.Transient("fetch", fmt.Errorf("feed returned %s", resp.Status))
	default:
		return nil, domain.Permanent("fetch", fmt.Errorf("feed returned %s", resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.Transient("fetch", fmt.Errorf("parse document: %w", err))
	}
	return doc, nil
}

func parseItem(sel *goquery.Selection, req scanner.Request, base *url.URL) (domain.CandidateItem, bool) {
	headline := strings.TrimSpace(sel.Find(req.Selectors.Headline).First().Text())

	href, _ := sel.Find(req.Selectors.Link).First().Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.CandidateItem{}, false
	}
	if ref, err := url.Parse(href); err == nil {
		href = base.ResolveReference(ref).String()
	}

	summary := ""
	if req.Selectors.Summary != "" {
		summary = strings.TrimSpace(sel.Find(req.Selectors.Summary).First().Text())
	}

	publishedAt := parseDate(sel, req.Selectors.Date)

	return domain.CandidateItem{
		SourceID:    req.SourceID,
		ExternalURL: href,
		Headline:    headline,
		Summary:     summary,
		PublishedAt: publishedAt,
	}, true
}

func parseDate(sel *goquery.Selection, selector string) time.Time {
	if selector == "" {
		return time.Now().UTC()
	}

	node := sel.Find(selector).First()
	raw, ok := node.Attr("datetime")
	if !ok {
		raw = node.Text()
	}
	raw = strings.TrimSpace(raw)

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Now().UTC()
}
