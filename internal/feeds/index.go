package feeds

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// Index turns a fixed list of RSS/Atom feeds into news candidates. It is the
// alternative to GDELT for deployments that prefer curated publisher feeds.
type Index struct {
	urls       []string
	lookback   time.Duration
	maxRecords int
	parser     *gofeed.Parser
	now        func() time.Time
}

// NewIndex creates a feed index. maxRecords caps the merged result.
func NewIndex(urls []string, lookback time.Duration, maxRecords int) *Index {
	p := gofeed.NewParser()
	p.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	return &Index{urls: urls, lookback: lookback, maxRecords: maxRecords, parser: p, now: time.Now}
}

// Candidates merges every feed, newest first, keeping items inside the
// lookback window. A feed that fails to load is skipped.
func (ix *Index) Candidates(ctx context.Context) ([]model.Candidate, error) {
	cutoff := ix.now().Add(-ix.lookback)
	var out []model.Candidate
	for _, u := range ix.urls {
		feed, err := ix.parser.ParseURLWithContext(u, ctx)
		if err != nil {
			slog.Warn("feeds: parse failed", "feed", u, "err", err)
			continue
		}
		for _, it := range feed.Items {
			c, ok := convert(it, feed.Language)
			if !ok {
				continue
			}
			if ix.lookback > 0 && !c.SeenAt.IsZero() && c.SeenAt.Before(cutoff) {
				continue
			}
			out = append(out, c)
		}
	}
	// Stable, so equal timestamps keep feed order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeenAt.After(out[j].SeenAt) })
	if ix.maxRecords > 0 && len(out) > ix.maxRecords {
		out = out[:ix.maxRecords]
	}
	return out, nil
}

func convert(it *gofeed.Item, lang string) (model.Candidate, bool) {
	link := strings.TrimSpace(it.Link)
	if link == "" {
		return model.Candidate{}, false
	}
	var seen time.Time
	if it.PublishedParsed != nil {
		seen = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		seen = *it.UpdatedParsed
	}
	var img string
	if it.Image != nil {
		img = it.Image.URL
	}
	if img == "" {
		for _, enc := range it.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				img = enc.URL
				break
			}
		}
	}
	var domain string
	if pu, err := url.Parse(link); err == nil {
		domain = pu.Hostname()
	}
	return model.Candidate{
		URL:      link,
		Title:    strings.TrimSpace(it.Title),
		ImageURL: img,
		Language: lang,
		Domain:   domain,
		SeenAt:   seen,
	}, true
}
