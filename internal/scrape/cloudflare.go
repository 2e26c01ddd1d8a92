package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// CloudflareClient calls Cloudflare Browser Rendering REST API. It renders the
// page in a real browser, which gets past most anti-bot walls the direct
// Fetcher trips on.
// See: https://developers.cloudflare.com/browser-rendering/rest-api/
type CloudflareClient struct {
	baseURL  string
	token    string
	http     *http.Client
	minChars int
}

type markdownRequest struct {
	URL                  string   `json:"url"`
	RejectRequestPattern []string `json:"rejectRequestPattern,omitempty"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Errors  any    `json:"errors"`
}

// NewCloudflare creates a new client from an account ID.
// Endpoint: https://api.cloudflare.com/client/v4/accounts/<ACCOUNT_ID>/browser-rendering/markdown
func NewCloudflare(accountID, token string, timeout time.Duration, minChars int) *CloudflareClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	baseURL := fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/browser-rendering/markdown", strings.TrimSpace(accountID))
	return &CloudflareClient{
		baseURL:  baseURL,
		token:    token,
		http:     &http.Client{Timeout: timeout},
		minChars: minChars,
	}
}

// Fetch renders u and converts the markdown into an Article. Like Fetcher it
// never returns an error; failures are logged and reported as absent.
func (c *CloudflareClient) Fetch(ctx context.Context, u string) (model.Article, bool) {
	title, content, err := c.Scrape(ctx, u)
	if err != nil {
		slog.Warn("scrape: cloudflare render failed", "url", truncate(u, 80), "err", err)
		return model.Article{}, false
	}
	body := markdownText(content)
	if n := utf8.RuneCountInString(body); n < c.minChars {
		slog.Info("scrape: filtered", "url", u, "reason", fmt.Errorf("%w: %d chars", ErrTooShort, n))
		return model.Article{}, false
	}
	return model.Article{Title: title, Body: body}, true
}

// Scrape fetches title and markdown content for a URL.
func (c *CloudflareClient) Scrape(ctx context.Context, u string) (title, content string, err error) {
	if c == nil {
		return "", "", errors.New("nil cloudflare client")
	}
	if _, err := url.ParseRequestURI(u); err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	body, _ := json.Marshal(markdownRequest{
		URL:                  u,
		RejectRequestPattern: []string{"/^.*\\.(css)/"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", "", fmt.Errorf("cloudflare render failed: status=%d body=%s", resp.StatusCode, string(b))
	}
	var envelope scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", "", err
	}
	if !envelope.Success {
		return "", "", fmt.Errorf("cloudflare render failed: %v", envelope.Errors)
	}
	content = envelope.Result
	return markdownTitle(content), content, nil
}

// markdownTitle picks the heading with the fewest '#', so "# Title" wins
// over "## Section".
func markdownTitle(md string) string {
	var headings []string
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			headings = append(headings, line)
		}
	}
	if len(headings) == 0 {
		return ""
	}
	sort.SliceStable(headings, func(i, j int) bool {
		return headingLevel(headings[i]) < headingLevel(headings[j])
	})
	return strings.TrimSpace(strings.TrimLeft(headings[0], "#"))
}

func headingLevel(line string) int {
	return len(line) - len(strings.TrimLeft(line, "#"))
}

// markdownText keeps prose lines and drops headings, images and list markup
// noise so the length filter behaves like the HTML paragraph extraction.
func markdownText(md string) string {
	var parts []string
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "",
			strings.HasPrefix(line, "#"),
			strings.HasPrefix(line, "!["),
			strings.HasPrefix(line, "---"),
			strings.HasPrefix(line, "|"):
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// ArticleSource is anything that can produce an Article for a URL.
type ArticleSource interface {
	Fetch(ctx context.Context, url string) (model.Article, bool)
}

// Fallback tries each source in order and returns the first usable article.
type Fallback []ArticleSource

func (f Fallback) Fetch(ctx context.Context, u string) (model.Article, bool) {
	for _, src := range f {
		if src == nil {
			continue
		}
		if art, ok := src.Fetch(ctx, u); ok {
			return art, true
		}
	}
	return model.Article{}, false
}
