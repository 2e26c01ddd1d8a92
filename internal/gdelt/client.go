package gdelt

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
	"strconv"
	"strings"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// ErrMalformedResponse is returned when the DOC API answers with something
// other than an article list (rate-limit text, empty body, missing key).
var ErrMalformedResponse = errors.New("gdelt: malformed response")

const timeLayout = "20060102150405"

// Client queries the GDELT DOC 2.0 API for recent articles from one country.
// Docs: https://blog.gdeltproject.org/gdelt-doc-2-0-api-debuts/
type Client struct {
	baseURL    string
	client     *http.Client
	country    string
	language   string
	lookback   time.Duration
	maxRecords int
	now        func() time.Time
}

// Options configures the query window.
type Options struct {
	BaseURL    string
	Country    string // FIPS code, e.g. AS for Australia
	Language   string // e.g. eng
	Lookback   time.Duration
	MaxRecords int
}

// NewClient creates a GDELT client. An empty BaseURL defaults to the public endpoint.
func NewClient(opts Options) *Client {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = "https://api.gdeltproject.org/api/v2/doc/doc"
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 20
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 10 * time.Hour
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
		country:    opts.Country,
		language:   opts.Language,
		lookback:   opts.Lookback,
		maxRecords: opts.MaxRecords,
		now:        time.Now,
	}
}

type artList struct {
	Articles *[]article `json:"articles"`
}

// article mirrors the subset of ArtList fields we care about.
type article struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"` // 20240102T030405Z
	SocialImage   string `json:"socialimage"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

// Candidates runs one ArtList query for the rolling lookback window, newest first.
func (c *Client) Candidates(ctx context.Context) ([]model.Candidate, error) {
	endpoint := c.queryURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("gdelt: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	slog.Info("gdelt: response received", "bytes", len(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	var list artList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if list.Articles == nil {
		return nil, fmt.Errorf("%w: no articles key", ErrMalformedResponse)
	}
	out := make([]model.Candidate, 0, len(*list.Articles))
	for _, a := range *list.Articles {
		if strings.TrimSpace(a.URL) == "" {
			continue
		}
		out = append(out, convert(a))
	}
	return out, nil
}

func (c *Client) queryURL() string {
	end := c.now().UTC()
	start := end.Add(-c.lookback)
	query := fmt.Sprintf(" sourcecountry:%s", c.country)
	if c.language != "" {
		query += fmt.Sprintf(" sourcelang:%s", c.language)
	}
	q := url.Values{
		"format":        {"json"},
		"query":         {query},
		"mode":          {"ArtList"},
		"maxrecords":    {strconv.Itoa(c.maxRecords)},
		"sort":          {"DateDesc"},
		"startdatetime": {start.Format(timeLayout)},
		"enddatetime":   {end.Format(timeLayout)},
	}
	return c.baseURL + "?" + q.Encode()
}

func convert(a article) model.Candidate {
	seen, _ := time.Parse("20060102T150405Z", a.SeenDate)
	return model.Candidate{
		URL:      strings.TrimSpace(a.URL),
		Title:    strings.TrimSpace(a.Title),
		ImageURL: strings.TrimSpace(a.SocialImage),
		Language: a.Language,
		Domain:   a.Domain,
		SeenAt:   seen,
	}
}
