package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// ErrTooShort marks a page whose extracted text is below the minimum length,
// usually a paywall or an anti-bot interstitial.
var ErrTooShort = errors.New("article text too short")

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Fetcher scrapes article pages directly, presenting itself as a browser
// arriving from a news aggregator.
type Fetcher struct {
	timeout   time.Duration
	minChars  int
	referer   string
	transport http.RoundTripper
}

// NewFetcher creates a Fetcher. Zero values fall back to 10s / 50 chars.
func NewFetcher(timeout time.Duration, minChars int, referer string) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if minChars <= 0 {
		minChars = 50
	}
	return &Fetcher{timeout: timeout, minChars: minChars, referer: referer}
}

// Fetch returns the article text and headline, or false when the page could
// not be used. Errors never escape; they are logged and reported as absent.
func (f *Fetcher) Fetch(ctx context.Context, u string) (model.Article, bool) {
	art, err := f.fetch(ctx, u)
	if err != nil {
		if errors.Is(err, ErrTooShort) {
			slog.Info("scrape: filtered", "url", u, "reason", err)
		} else {
			slog.Warn("scrape: fetch failed", "url", truncate(u, 80), "err", err)
		}
		return model.Article{}, false
	}
	return art, true
}

func (f *Fetcher) fetch(ctx context.Context, u string) (model.Article, error) {
	var zero model.Article
	if _, err := url.ParseRequestURI(u); err != nil {
		return zero, fmt.Errorf("invalid url: %w", err)
	}
	// A fresh jar per fetch: cookies set along a redirect chain are replayed
	// within this request only.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return zero, err
	}
	client := &http.Client{Timeout: f.timeout, Jar: jar, Transport: f.transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, err
	}
	f.setBrowserHeaders(req)
	resp, err := client.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return zero, fmt.Errorf("detect encoding: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return zero, fmt.Errorf("parse document: %w", err)
	}
	art := Extract(doc)
	if n := utf8.RuneCountInString(art.Body); n < f.minChars {
		return zero, fmt.Errorf("%w: %d chars", ErrTooShort, n)
	}
	return art, nil
}

func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	h := req.Header
	h.Set("User-Agent", browserUA)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-AU,en-GB;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "identity")
	if f.referer != "" {
		h.Set("Referer", f.referer)
	}
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "cross-site")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
}

// Extract pulls the visible paragraph text and the first non-empty h1.
func Extract(doc *goquery.Document) model.Article {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	var title string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title = strings.Join(strings.Fields(s.Text()), " ")
		return title == ""
	})
	return model.Article{
		Title: title,
		Body:  strings.TrimSpace(strings.Join(parts, " ")),
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
