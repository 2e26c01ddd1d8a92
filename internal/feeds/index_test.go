package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>ABC</title><language>en-au</language>
<item><title>Older</title><link>https://www.abc.net.au/news/old</link><pubDate>Tue, 04 Mar 2025 02:00:00 GMT</pubDate></item>
<item><title>Newest</title><link>https://www.abc.net.au/news/new</link><pubDate>Tue, 04 Mar 2025 11:00:00 GMT</pubDate>
<enclosure url="https://img/new.jpg" type="image/jpeg" length="1"/></item>
<item><title>Stale</title><link>https://www.abc.net.au/news/stale</link><pubDate>Mon, 03 Mar 2025 01:00:00 GMT</pubDate></item>
<item><title>No link</title></item>
</channel></rss>`

func TestCandidatesFiltersWindowAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	ix := NewIndex([]string{srv.URL + "/broken", srv.URL + "/feed"}, 10*time.Hour, 20)
	ix.now = func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC) }

	got, err := ix.Candidates(context.Background())
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d: %+v", len(got), got)
	}
	if got[0].Title != "Newest" || got[1].Title != "Older" {
		t.Errorf("order = %q, %q", got[0].Title, got[1].Title)
	}
	if got[0].ImageURL != "https://img/new.jpg" {
		t.Errorf("image = %q", got[0].ImageURL)
	}
	if got[0].Domain != "www.abc.net.au" {
		t.Errorf("domain = %q", got[0].Domain)
	}
}

func TestCandidatesCapsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	ix := NewIndex([]string{srv.URL}, 0, 1)
	got, _ := ix.Candidates(context.Background())
	if len(got) != 1 || got[0].Title != "Newest" {
		t.Fatalf("got %+v", got)
	}
}

func TestCandidatesKeepFeedOrderOnTies(t *testing.T) {
	const tied = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>SMH</title>
<item><title>First</title><link>https://www.smh.com.au/a</link><pubDate>Tue, 04 Mar 2025 09:00:00 GMT</pubDate></item>
<item><title>Second</title><link>https://www.smh.com.au/b</link><pubDate>Tue, 04 Mar 2025 09:00:00 GMT</pubDate></item>
<item><title>Later</title><link>https://www.smh.com.au/c</link><pubDate>Tue, 04 Mar 2025 10:00:00 GMT</pubDate></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tied))
	}))
	defer srv.Close()

	ix := NewIndex([]string{srv.URL}, 0, 10)
	got, _ := ix.Candidates(context.Background())
	want := []string{"Later", "First", "Second"}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i, w := range want {
		if got[i].Title != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Title, w)
		}
	}
}
