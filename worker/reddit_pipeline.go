package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"
)

// DiscussionSource reads community posts and comments.
type DiscussionSource interface {
	HotPosts(ctx context.Context, community string, limit int) ([]model.Post, error)
	TopComments(ctx context.Context, postID string, limit int) ([]model.Comment, error)
}

// DiscussionSummarizer summarizes a post with its comments.
type DiscussionSummarizer interface {
	SummarizeDiscussion(ctx context.Context, text string) model.Summary
}

const (
	postBodyChars     = 1000
	commentChars      = 500
	commentsInSummary = 3
)

// RedditPipeline ingests the most engaging recent discussions across a set of
// communities. Items are never dropped for a failed summary; the title
// stands in.
type RedditPipeline struct {
	Source     DiscussionSource
	Summarizer DiscussionSummarizer
	Publisher  Publisher
	Memo       SummaryMemo // optional

	Communities       []string
	PostsPerCommunity int
	Lookback          time.Duration
	CommentsPerPost   int
	MinCommentScore   int // comments must score above this
	MaxItems          int
	CommunityPause    time.Duration
	Pacing            time.Duration // pause between summarizer calls
	Folder            string
	Prefix            string

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (p *RedditPipeline) Ingest(ctx context.Context) ([]model.ContentItem, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.Lookback)

	var (
		posts []model.Post
		errs  []error
	)
	for i, community := range p.Communities {
		if i > 0 {
			sleep(ctx, p.CommunityPause)
		}
		got, err := p.Source.HotPosts(ctx, community, p.PostsPerCommunity)
		if err != nil {
			slog.Warn("reddit: community failed", "community", community, "err", err)
			errs = append(errs, fmt.Errorf("r/%s: %w", community, err))
			continue
		}
		kept := 0
		for _, post := range got {
			if post.Pinned || (p.Lookback > 0 && post.CreatedAt.Before(cutoff)) {
				continue
			}
			post.Comments = p.comments(ctx, post)
			posts = append(posts, post)
			kept++
		}
		slog.Info("reddit: community fetched", "community", community, "posts", len(got), "kept", kept)
	}
	if len(posts) == 0 && len(errs) == len(p.Communities) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
	if p.MaxItems > 0 && len(posts) > p.MaxItems {
		posts = posts[:p.MaxItems]
	}

	items := make([]model.ContentItem, 0, len(posts))
	for i, post := range posts {
		if i > 0 {
			sleep(ctx, p.Pacing)
		}
		text := combinedText(post)
		sum := memoized(ctx, p.Memo, "discussion", text, func() model.Summary {
			return p.Summarizer.SummarizeDiscussion(ctx, text)
		})
		summary := sum.Text
		if !sum.OK() {
			slog.Info("reddit: summary unavailable, using title", "post", post.ID)
			summary = post.Title
		}
		items = append(items, model.ContentItem{
			ID:        i + 1,
			Title:     post.Title,
			Summary:   summary,
			SourceURL: post.Permalink,
			ImageURL:  postImage(post),
			Meta: map[string]string{
				"subreddit":    post.Community,
				"score":        strconv.Itoa(post.Score),
				"num_comments": strconv.Itoa(post.NumComments),
			},
		})
	}
	if len(items) == 0 {
		return items, nil
	}

	res := p.Publisher.Publish(ctx, items, p.Folder, p.Prefix)
	slog.Info("reddit: ingest complete", "items", len(items), "audio", len(res.Published), "audio_failed", len(res.Failed))
	return items, nil
}

// comments is best effort: a failure just means no comments.
func (p *RedditPipeline) comments(ctx context.Context, post model.Post) []model.Comment {
	if p.CommentsPerPost <= 0 {
		return nil
	}
	got, err := p.Source.TopComments(ctx, post.ID, p.CommentsPerPost)
	if err != nil {
		slog.Debug("reddit: comments unavailable", "post", post.ID, "err", err)
		return nil
	}
	var out []model.Comment
	for _, c := range got {
		if c.Score <= p.MinCommentScore || strings.TrimSpace(c.Body) == "" {
			continue
		}
		c.Body = truncateRunes(c.Body, commentChars)
		out = append(out, c)
	}
	return out
}

func combinedText(post model.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nPost: %s\n\n", post.Title, truncateRunes(post.Body, postBodyChars))
	if len(post.Comments) > 0 {
		b.WriteString("Top Comments:\n")
		for i, c := range post.Comments {
			if i >= commentsInSummary {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, c.Body)
		}
	}
	return b.String()
}

// postImage prefers the full preview, then an http thumbnail.
func postImage(post model.Post) string {
	if post.PreviewURL != "" {
		return post.PreviewURL
	}
	if strings.HasPrefix(post.Thumbnail, "http") {
		return post.Thumbnail
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
