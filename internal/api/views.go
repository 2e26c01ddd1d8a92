package api

import (
	"fmt"
	"strings"

	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

const (
	newsPlaceholder   = "https://via.placeholder.com/400x250/4A90E2/ffffff?text=No+Image"
	redditPlaceholder = "https://via.placeholder.com/400x250/FF4500/ffffff?text=Reddit"
)

// ItemView is the client-facing shape of one content item.
type ItemView struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Source    string  `json:"source"`
	SourceURL string  `json:"source_url"`
	Image     string  `json:"image"`
	Category  string  `json:"category"`
	TTSURL    *string `json:"tts_url"`
}

// kind binds one cache slot to its routes and wording.
type kind struct {
	name      string // singular noun used in messages
	slot      *cache.Slot
	refresher Refresher
	ttsPath   string
	view      func(it model.ContentItem) ItemView

	noData     map[string]string
	busyMsg    string
	successMsg string
	emptyMsg   string
}

func newsKind(slot *cache.Slot, r Refresher) *kind {
	return &kind{
		name:      "News",
		slot:      slot,
		refresher: r,
		ttsPath:   "/api/tts/",
		view:      newsView,
		noData: map[string]string{
			"error":   "No news available",
			"message": "No news cached. Please call /api/fetch-news to fetch fresh news.",
		},
		busyMsg:    "News fetch already in progress. Please wait.",
		successMsg: "News fetched and processed successfully",
		emptyMsg:   "No news could be fetched",
	}
}

func redditKind(slot *cache.Slot, r Refresher) *kind {
	return &kind{
		name:      "Reddit",
		slot:      slot,
		refresher: r,
		ttsPath:   "/api/tts-reddit/",
		view:      redditView,
		noData: map[string]string{
			"error":   "No Reddit data available",
			"message": "Call /api/fetch-reddit first",
		},
		busyMsg:    "Reddit fetch already in progress.",
		successMsg: "Reddit discussions fetched successfully",
		emptyMsg:   "No Reddit discussions fetched",
	}
}

func (k *kind) views(snap cache.Snapshot) []ItemView {
	out := make([]ItemView, 0, len(snap.Items))
	v := snap.CapturedAt.Unix()
	for _, it := range snap.Items {
		iv := k.view(it)
		if it.HasAudio() {
			u := fmt.Sprintf("%s%d?v=%d", k.ttsPath, it.ID, v)
			iv.TTSURL = &u
		}
		out = append(out, iv)
	}
	return out
}

func newsView(it model.ContentItem) ItemView {
	return ItemView{
		ID:        it.ID,
		Title:     orDefault(it.Title, "Title not available"),
		Summary:   orDefault(it.Summary, "Summary not available"),
		SourceURL: orDefault(it.SourceURL, "#"),
		Image:     degradedImage(it.ImageURL),
	}
}

func redditView(it model.ContentItem) ItemView {
	image := it.ImageURL
	if !strings.HasPrefix(image, "http") {
		image = redditPlaceholder
	}
	return ItemView{
		ID:        it.ID,
		Title:     orDefault(it.Title, "No title"),
		Summary:   it.Summary,
		Source:    "r/" + orDefault(it.Meta["subreddit"], "australia"),
		SourceURL: orDefault(it.SourceURL, "#"),
		Image:     image,
		Category:  fmt.Sprintf("%s upvotes %s comments", orDefault(it.Meta["score"], "0"), orDefault(it.Meta["num_comments"], "0")),
	}
}

// degradedImage asks the image host for a smaller rendition.
func degradedImage(u string) string {
	if !strings.HasPrefix(u, "http") {
		return newsPlaceholder
	}
	if strings.Contains(u, "?") {
		return u + "&width=400&quality=60"
	}
	return u + "?width=400&quality=60"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
