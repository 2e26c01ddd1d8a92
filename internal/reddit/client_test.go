package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const hotJSON = `{"data":{"children":[
 {"kind":"t3","data":{"id":"a1","subreddit":"australia","title":"Pinned rules","stickied":true,"score":5,"created_utc":1741089600.0}},
 {"kind":"t3","data":{"id":"b2","subreddit":"australia","title":"Rates cut","selftext":"discuss","permalink":"/r/australia/comments/b2/rates_cut/","score":120,"num_comments":45,"created_utc":1741089600.0,
   "thumbnail":"self","preview":{"images":[{"source":{"url":"https://preview.redd.it/x.jpg?width=640&amp;s=abc"}}]}}}
]}}`

const commentsJSON = `[{"data":{"children":[]}},{"data":{"children":[
 {"kind":"t1","data":{"body":"first","score":10}},
 {"kind":"t1","data":{"body":"second","score":1}},
 {"kind":"more","data":{"count":30}},
 {"kind":"t1","data":{"body":"third","score":4}}
]}}]`

func TestHotPostsPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/australia/hot.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("limit = %s", r.URL.Query().Get("limit"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		w.Write([]byte(hotJSON))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	posts, err := c.HotPosts(context.Background(), "australia", 10)
	if err != nil {
		t.Fatalf("HotPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("len = %d", len(posts))
	}
	if !posts[0].Pinned {
		t.Errorf("first post should be pinned")
	}
	p := posts[1]
	if p.PreviewURL != "https://preview.redd.it/x.jpg?width=640&s=abc" {
		t.Errorf("preview = %q", p.PreviewURL)
	}
	if p.Permalink != "https://www.reddit.com/r/australia/comments/b2/rates_cut/" {
		t.Errorf("permalink = %q", p.Permalink)
	}
	if p.Score != 120 || p.NumComments != 45 || p.CreatedAt.Unix() != 1741089600 {
		t.Errorf("post = %+v", p)
	}
}

func TestTopCommentsSkipsMore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments/b2.json" || r.URL.Query().Get("sort") != "top" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(commentsJSON))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	got, err := c.TopComments(context.Background(), "b2", 5)
	if err != nil {
		t.Fatalf("TopComments: %v", err)
	}
	if len(got) != 3 || got[2].Body != "third" {
		t.Fatalf("got %+v", got)
	}
	got, _ = c.TopComments(context.Background(), "b2", 2)
	if len(got) != 2 {
		t.Fatalf("limit not applied: %+v", got)
	}
}

func TestOAuthTokenIsCached(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		if u, p, ok := r.BasicAuth(); !ok || u != "id" || p != "secret" {
			t.Errorf("basic auth = %q %q %v", u, p, ok)
		}
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/r/sydney/hot", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"children":[]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Options{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL, TokenURL: srv.URL + "/token"})
	for i := 0; i < 2; i++ {
		if _, err := c.HotPosts(context.Background(), "sydney", 10); err != nil {
			t.Fatalf("HotPosts: %v", err)
		}
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL})
	if _, err := c.HotPosts(context.Background(), "melbourne", 10); err == nil {
		t.Fatal("expected error")
	}
}
