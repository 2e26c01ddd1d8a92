package model

import "time"

// AudioHandle is an opaque, permanent token issued by the blob store for one
// published audio object.
type AudioHandle string

// ContentItem is one news article or discussion as served to clients.
// ID is the 1-based position inside the snapshot it belongs to; it is
// reassigned on every refresh and means nothing across snapshots.
type ContentItem struct {
	ID          int               `json:"id"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	SourceURL   string            `json:"source_url"`
	ImageURL    string            `json:"image_url,omitempty"`
	AudioHandle AudioHandle       `json:"audio_handle,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// HasAudio reports whether a published audio handle is attached.
func (c ContentItem) HasAudio() bool {
	return c.AudioHandle != ""
}

// Candidate is a news index hit before scraping.
type Candidate struct {
	URL      string
	Title    string
	ImageURL string
	Language string
	Domain   string
	SeenAt   time.Time
}

// Article is the scraped body and headline of a page.
type Article struct {
	Title string
	Body  string
}

// Post is a discussion thread from a community.
type Post struct {
	ID          string
	Community   string
	Title       string
	Body        string
	Permalink   string
	Score       int
	NumComments int
	CreatedAt   time.Time
	Pinned      bool
	PreviewURL  string // high-resolution preview, may be empty
	Thumbnail   string // may be a keyword like "self" instead of a URL
	Comments    []Comment
}

// Comment is a reply on a Post.
type Comment struct {
	Body  string
	Score int
}
