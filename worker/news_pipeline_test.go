package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

type fakeIndex struct {
	errs  []error
	cands []model.Candidate
	calls int
}

func (f *fakeIndex) Candidates(ctx context.Context) ([]model.Candidate, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.cands, nil
}

type fakeFetcher map[string]model.Article

func (f fakeFetcher) Fetch(ctx context.Context, u string) (model.Article, bool) {
	a, ok := f[u]
	return a, ok
}

type scriptedSummarizer struct {
	calls []string
	by    func(text string) model.Summary
}

func (s *scriptedSummarizer) SummarizeArticle(ctx context.Context, text string) model.Summary {
	s.calls = append(s.calls, text)
	return s.by(text)
}

func (s *scriptedSummarizer) SummarizeDiscussion(ctx context.Context, text string) model.Summary {
	s.calls = append(s.calls, text)
	return s.by(text)
}

type recordingPublisher struct {
	batches [][]model.ContentItem
	folder  string
	prefix  string
}

func (p *recordingPublisher) Publish(ctx context.Context, items []model.ContentItem, folder, prefix string) PublishResult {
	p.batches = append(p.batches, append([]model.ContentItem(nil), items...))
	p.folder, p.prefix = folder, prefix
	var res PublishResult
	for i := range items {
		items[i].AudioHandle = model.AudioHandle("h" + prefix)
		res.Published = append(res.Published, i+1)
	}
	return res
}

type memMemo struct {
	m    map[string]model.Summary
	puts int
}

func (m *memMemo) GetSummary(ctx context.Context, kind, text string) (model.Summary, bool, error) {
	s, ok := m.m[kind+"|"+text]
	return s, ok, nil
}

func (m *memMemo) PutSummary(ctx context.Context, kind, text string, sum model.Summary) error {
	if sum.Outcome == model.OutcomeUnavailable {
		return nil
	}
	m.puts++
	m.m[kind+"|"+text] = sum
	return nil
}

func body(s string) string { return s + strings.Repeat(" filler", 10) }

func newTestNews(idx Index, fetch ArticleFetcher, sum ArticleSummarizer, pub Publisher) (*NewsPipeline, *sleepLog) {
	sl := &sleepLog{}
	return &NewsPipeline{
		Index:            idx,
		Fetcher:          fetch,
		Summarizer:       sum,
		Publisher:        pub,
		IndexAttempts:    4,
		IndexRetryDelay:  3 * time.Second,
		DomainSuffix:     ".au",
		Pacing:           time.Second,
		TitlePrefixChars: 10,
		Folder:           "/tts_australian",
		Prefix:           "news",
		Sleep:            sl.Sleep,
	}, sl
}

func TestNewsIngest(t *testing.T) {
	idx := &fakeIndex{cands: []model.Candidate{
		{URL: "https://www.abc.net.au/a", Title: "Index A", ImageURL: "https://img/a.jpg"},
		{URL: "https://example.com/au/b", Title: "Foreign"},
		{URL: "https://www.smh.com.au/c", Title: "Index C"},
		{URL: "https://www.smh.com.au/dup", Title: "Dup"},
		{URL: "https://news.com.au/blocked", Title: "Blocked"},
		{URL: "https://www.9news.com.au/e", Title: "Index E"},
		{URL: "https://www.theage.com.au/f", Title: ""},
	}}
	fetch := fakeFetcher{
		"https://www.abc.net.au/a":    {Title: "Scraped A", Body: body("alpha")},
		"https://example.com/au/b":    {Title: "B", Body: body("beta")},
		"https://www.smh.com.au/c":    {Title: "", Body: body("gamma")},
		"https://www.smh.com.au/dup":  {Title: "Scraped A", Body: body("alpha copy")},
		"https://www.9news.com.au/e":  {Title: "Overseas", Body: body("offtopic")},
		"https://www.theage.com.au/f": {Title: "", Body: body("untitled")},
	}
	sum := &scriptedSummarizer{by: func(text string) model.Summary {
		switch {
		case strings.HasPrefix(text, "offtopic"):
			return model.Summary{Outcome: model.OutcomeNotRelevant}
		case strings.HasPrefix(text, "untitled"):
			return model.Summary{Outcome: model.OutcomeSummary, Text: "Melbourne trams run late again today"}
		}
		return model.Summary{Outcome: model.OutcomeSummary, Text: "sum " + strings.Fields(text)[0]}
	}}
	pub := &recordingPublisher{}
	p, sl := newTestNews(idx, fetch, sum, pub)

	items, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	wantTitles := []string{"Scraped A", "Index C", "Melbourne ..."}
	if len(items) != len(wantTitles) {
		t.Fatalf("items = %+v", items)
	}
	for i, it := range items {
		if it.ID != i+1 {
			t.Errorf("items[%d].ID = %d", i, it.ID)
		}
		if it.Title != wantTitles[i] {
			t.Errorf("items[%d].Title = %q, want %q", i, it.Title, wantTitles[i])
		}
		if it.AudioHandle != "hnews" {
			t.Errorf("items[%d] handle not attached", i)
		}
	}
	if items[0].ImageURL != "https://img/a.jpg" || items[0].SourceURL != "https://www.abc.net.au/a" {
		t.Errorf("item 1 = %+v", items[0])
	}
	if len(sum.calls) != 4 { // a, c, e, f
		t.Errorf("summarizer calls = %d", len(sum.calls))
	}
	if len(sl.waits) != 3 {
		t.Errorf("pacing waits = %v", sl.waits)
	}
	if pub.folder != "/tts_australian" || pub.prefix != "news" || len(pub.batches) != 1 {
		t.Errorf("publisher got folder=%q prefix=%q batches=%d", pub.folder, pub.prefix, len(pub.batches))
	}
}

func TestNewsIndexRetry(t *testing.T) {
	bad := errors.New("malformed")
	idx := &fakeIndex{errs: []error{bad, bad}}
	p, sl := newTestNews(idx, fakeFetcher{}, &scriptedSummarizer{}, &recordingPublisher{})
	items, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(items) != 0 || idx.calls != 3 {
		t.Errorf("items=%d calls=%d", len(items), idx.calls)
	}
	if len(sl.waits) != 2 || sl.waits[0] != 3*time.Second {
		t.Errorf("waits = %v", sl.waits)
	}

	idx = &fakeIndex{errs: []error{bad, bad, bad, bad}}
	p.Index = idx
	if _, err := p.Ingest(context.Background()); !errors.Is(err, bad) {
		t.Fatalf("err = %v", err)
	}
	if idx.calls != 4 {
		t.Errorf("calls = %d, want 4", idx.calls)
	}
}

func TestNewsEmptyDoesNotPublish(t *testing.T) {
	idx := &fakeIndex{cands: []model.Candidate{{URL: "https://www.abc.net.au/a"}}}
	sum := &scriptedSummarizer{by: func(string) model.Summary { return model.Summary{Outcome: model.OutcomePaywall} }}
	pub := &recordingPublisher{}
	p, _ := newTestNews(idx, fakeFetcher{"https://www.abc.net.au/a": {Body: body("x")}}, sum, pub)
	items, err := p.Ingest(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("items=%v err=%v", items, err)
	}
	if len(pub.batches) != 0 {
		t.Errorf("publisher should not run for an empty batch")
	}
}

func TestNewsMemo(t *testing.T) {
	idx := &fakeIndex{cands: []model.Candidate{{URL: "https://www.abc.net.au/a", Title: "A"}}}
	fetch := fakeFetcher{"https://www.abc.net.au/a": {Body: body("alpha")}}
	sum := &scriptedSummarizer{by: func(string) model.Summary { return model.Summary{Outcome: model.OutcomeSummary, Text: "s"} }}
	p, _ := newTestNews(idx, fetch, sum, &recordingPublisher{})
	memo := &memMemo{m: map[string]model.Summary{}}
	p.Memo = memo

	p.Ingest(context.Background())
	p.Ingest(context.Background())
	if len(sum.calls) != 1 || memo.puts != 1 {
		t.Errorf("summarizer calls = %d, memo puts = %d", len(sum.calls), memo.puts)
	}
}

func TestHasDomainSuffix(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.abc.net.au/news/1", true},
		{"https://example.com.au", true},
		{"https://EXAMPLE.COM.AU./x", true},
		{"https://example.com/aus", false},
		{"https://example.com/?u=.au", false},
		{"https://australia.com", false},
		{"::bad", false},
	}
	for _, tt := range tests {
		if got := hasDomainSuffix(tt.url, ".au"); got != tt.want {
			t.Errorf("hasDomainSuffix(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
