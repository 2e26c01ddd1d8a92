package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// Index lists candidate article URLs for the configured window.
type Index interface {
	Candidates(ctx context.Context) ([]model.Candidate, error)
}

// ArticleFetcher scrapes one page. A false result means skip the URL.
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (model.Article, bool)
}

// ArticleSummarizer summarizes scraped article text.
type ArticleSummarizer interface {
	SummarizeArticle(ctx context.Context, text string) model.Summary
}

// Publisher narrates and uploads a batch of items.
type Publisher interface {
	Publish(ctx context.Context, items []model.ContentItem, folder, prefix string) PublishResult
}

// SummaryMemo remembers summarizer outcomes across runs.
type SummaryMemo interface {
	GetSummary(ctx context.Context, kind, text string) (model.Summary, bool, error)
	PutSummary(ctx context.Context, kind, text string, sum model.Summary) error
}

// NewsPipeline ingests country news: index, scrape, dedupe, summarize and
// publish audio.
type NewsPipeline struct {
	Index      Index
	Fetcher    ArticleFetcher
	Summarizer ArticleSummarizer
	Publisher  Publisher
	Memo       SummaryMemo // optional

	IndexAttempts    int
	IndexRetryDelay  time.Duration
	DomainSuffix     string
	Pacing           time.Duration
	TitlePrefixChars int
	Folder           string
	Prefix           string

	// Sleep waits between steps; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

type newsDraft struct {
	cand  model.Candidate
	title string
	body  string
}

// Ingest runs one pass. An empty result with a nil error means nothing was
// worth publishing this cycle.
func (p *NewsPipeline) Ingest(ctx context.Context) ([]model.ContentItem, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	cands, err := p.candidates(ctx, sleep)
	if err != nil {
		return nil, err
	}
	slog.Info("news: candidates", "count", len(cands))

	var drafts []newsDraft
	for _, c := range cands {
		if !hasDomainSuffix(c.URL, p.DomainSuffix) {
			slog.Debug("news: filtered by domain", "url", c.URL)
			continue
		}
		art, ok := p.Fetcher.Fetch(ctx, c.URL)
		if !ok {
			continue
		}
		title := art.Title
		if title == "" {
			title = c.Title
		}
		drafts = append(drafts, newsDraft{cand: c, title: title, body: art.Body})
	}
	drafts = dedupeByTitle(drafts)
	slog.Info("news: scraped", "kept", len(drafts))

	var items []model.ContentItem
	for i, d := range drafts {
		if i > 0 {
			sleep(ctx, p.Pacing)
		}
		sum := memoized(ctx, p.Memo, "article", d.body, func() model.Summary {
			return p.Summarizer.SummarizeArticle(ctx, d.body)
		})
		if !sum.OK() {
			slog.Info("news: dropped", "url", d.cand.URL, "outcome", sum.Outcome)
			continue
		}
		items = append(items, model.ContentItem{
			Title:     d.title,
			Summary:   sum.Text,
			SourceURL: d.cand.URL,
			ImageURL:  d.cand.ImageURL,
			Meta:      newsMeta(d.cand),
		})
	}
	for i := range items {
		items[i].ID = i + 1
		if items[i].Title == "" {
			items[i].Title = titleFromSummary(items[i].Summary, p.TitlePrefixChars)
		}
	}
	if len(items) == 0 {
		return items, nil
	}

	res := p.Publisher.Publish(ctx, items, p.Folder, p.Prefix)
	slog.Info("news: ingest complete", "items", len(items), "audio", len(res.Published), "audio_failed", len(res.Failed))
	return items, nil
}

func (p *NewsPipeline) candidates(ctx context.Context, sleep func(context.Context, time.Duration) error) ([]model.Candidate, error) {
	attempts := p.IndexAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		cands, err := p.Index.Candidates(ctx)
		if err == nil {
			return cands, nil
		}
		lastErr = err
		slog.Warn("news: index query failed", "attempt", attempt, "of", attempts, "err", err)
		if attempt < attempts {
			if err := sleep(ctx, p.IndexRetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("news index: %w", lastErr)
}

// hasDomainSuffix reports whether the URL host ends with suffix, so
// "abc.net.au" matches ".au" but "example.com/au" does not.
func hasDomainSuffix(raw, suffix string) bool {
	if suffix == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	suffix = strings.ToLower(suffix)
	return strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".")
}

// dedupeByTitle keeps the first draft for each non-empty title.
func dedupeByTitle(in []newsDraft) []newsDraft {
	seen := map[string]bool{}
	out := in[:0]
	for _, d := range in {
		if d.title != "" {
			if seen[d.title] {
				continue
			}
			seen[d.title] = true
		}
		out = append(out, d)
	}
	return out
}

func titleFromSummary(summary string, n int) string {
	if n <= 0 {
		n = 50
	}
	r := []rune(summary)
	if len(r) <= n {
		return summary
	}
	return string(r[:n]) + "..."
}

func newsMeta(c model.Candidate) map[string]string {
	m := map[string]string{}
	if c.Domain != "" {
		m["domain"] = c.Domain
	}
	if c.Language != "" {
		m["language"] = c.Language
	}
	if !c.SeenAt.IsZero() {
		m["seen_at"] = c.SeenAt.UTC().Format(time.RFC3339)
	}
	return m
}

// memoized consults memo before calling fn and stores the outcome after.
// Memo failures are logged and ignored.
func memoized(ctx context.Context, memo SummaryMemo, kind, text string, fn func() model.Summary) model.Summary {
	if memo == nil {
		return fn()
	}
	if sum, ok, err := memo.GetSummary(ctx, kind, text); err != nil {
		slog.Warn("memo: get", "kind", kind, "err", err)
	} else if ok {
		slog.Debug("memo: hit", "kind", kind, "outcome", sum.Outcome)
		return sum
	}
	sum := fn()
	if err := memo.PutSummary(ctx, kind, text, sum); err != nil {
		slog.Warn("memo: put", "kind", kind, "err", err)
	}
	return sum
}
