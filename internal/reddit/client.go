package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

const (
	publicBaseURL = "https://www.reddit.com"
	oauthBaseURL  = "https://oauth.reddit.com"
	tokenURL      = "https://www.reddit.com/api/v1/access_token"
)

// Options configures a Client. With ClientID and ClientSecret set the client
// uses the OAuth API (application-only grant); otherwise it reads the public
// .json listings.
type Options struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string // optional override
	TokenURL     string // optional override
}

// Client reads hot posts and their top comments.
type Client struct {
	opts    Options
	baseURL string
	oauth   bool
	client  *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClient(opts Options) *Client {
	oauth := opts.ClientID != "" && opts.ClientSecret != ""
	base := opts.BaseURL
	if base == "" {
		base = publicBaseURL
		if oauth {
			base = oauthBaseURL
		}
	}
	if opts.TokenURL == "" {
		opts.TokenURL = tokenURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pwa-australian-news/1.0"
	}
	return &Client{
		opts:    opts,
		baseURL: strings.TrimRight(base, "/"),
		oauth:   oauth,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type rawPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	Thumbnail   string  `json:"thumbnail"`
	Preview     struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

type rawComment struct {
	Body  string `json:"body"`
	Score int    `json:"score"`
}

// HotPosts returns up to limit posts from the community's hot listing.
// API: GET /r/{community}/hot?limit={n}
func (c *Client) HotPosts(ctx context.Context, community string, limit int) ([]model.Post, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}, "raw_json": {"1"}}
	var l listing
	if err := c.get(ctx, "/r/"+url.PathEscape(community)+"/hot", q, &l); err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(l.Data.Children))
	for _, ch := range l.Data.Children {
		if ch.Kind != "t3" {
			continue
		}
		var p rawPost
		if err := json.Unmarshal(ch.Data, &p); err != nil {
			return nil, fmt.Errorf("reddit: decode post: %w", err)
		}
		post := model.Post{
			ID:          p.ID,
			Community:   p.Subreddit,
			Title:       p.Title,
			Body:        p.Selftext,
			Permalink:   c.permalink(p.Permalink),
			Score:       p.Score,
			NumComments: p.NumComments,
			CreatedAt:   time.Unix(int64(p.CreatedUTC), 0).UTC(),
			Pinned:      p.Stickied,
			Thumbnail:   p.Thumbnail,
		}
		if post.Community == "" {
			post.Community = community
		}
		if len(p.Preview.Images) > 0 {
			post.PreviewURL = html.UnescapeString(p.Preview.Images[0].Source.URL)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// TopComments returns the first limit top-level comments sorted by top.
// API: GET /comments/{id}?sort=top&depth=1
func (c *Client) TopComments(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	q := url.Values{
		"sort":     {"top"},
		"limit":    {strconv.Itoa(limit)},
		"depth":    {"1"},
		"raw_json": {"1"},
	}
	var pages []listing
	if err := c.get(ctx, "/comments/"+url.PathEscape(postID), q, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}
	var out []model.Comment
	for _, ch := range pages[1].Data.Children {
		if ch.Kind != "t1" {
			continue
		}
		var rc rawComment
		if err := json.Unmarshal(ch.Data, &rc); err != nil {
			return nil, fmt.Errorf("reddit: decode comment: %w", err)
		}
		out = append(out, model.Comment{Body: rc.Body, Score: rc.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) permalink(p string) string {
	if p == "" || strings.HasPrefix(p, "http") {
		return p
	}
	return publicBaseURL + p
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if !c.oauth {
		endpoint += ".json"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.oauth {
		tok, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized && c.oauth {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reddit: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// accessToken returns a cached application-only token, fetching a new one
// shortly before expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reddit: token status %d", resp.StatusCode)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		if tr.Error != "" {
			return "", fmt.Errorf("reddit: token: %s", tr.Error)
		}
		return "", errors.New("reddit: empty access token")
	}
	c.token = tr.AccessToken
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	c.expires = time.Now().Add(ttl - time.Minute)
	return c.token, nil
}
