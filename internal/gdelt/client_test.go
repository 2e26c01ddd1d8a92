package gdelt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	c := NewClient(Options{BaseURL: url, Country: "AS", Language: "eng", Lookback: 10 * time.Hour, MaxRecords: 20})
	c.now = func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCandidatesBuildsQueryAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("query"); got != " sourcecountry:AS sourcelang:eng" {
			t.Errorf("query = %q", got)
		}
		if q.Get("mode") != "ArtList" || q.Get("sort") != "DateDesc" || q.Get("maxrecords") != "20" {
			t.Errorf("unexpected params: %v", q)
		}
		if q.Get("startdatetime") != "20250304020000" || q.Get("enddatetime") != "20250304120000" {
			t.Errorf("window = %s..%s", q.Get("startdatetime"), q.Get("enddatetime"))
		}
		w.Write([]byte(`{"articles":[
			{"url":"https://www.abc.net.au/news/1","title":"One","seendate":"20250304T110000Z","socialimage":"https://img/1.jpg","domain":"abc.net.au","language":"English"},
			{"url":"","title":"dropped"},
			{"url":"https://example.com/2","title":" Two "}
		]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Candidates(context.Background())
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ImageURL != "https://img/1.jpg" || got[0].SeenAt.Hour() != 11 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Title != "Two" {
		t.Errorf("title not trimmed: %q", got[1].Title)
	}
}

func TestCandidatesMalformed(t *testing.T) {
	bodies := []string{"", "Please limit requests to one every 5 seconds", "{}"}
	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		_, err := newTestClient(srv.URL).Candidates(context.Background())
		srv.Close()
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("body %q: err = %v, want ErrMalformedResponse", body, err)
		}
	}
}

func TestCandidatesEmptyListIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"articles":[]}`))
	}))
	defer srv.Close()
	got, err := newTestClient(srv.URL).Candidates(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}
