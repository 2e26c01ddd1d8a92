package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pkarcreative/pwa-australian-news/internal/ai"
	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/internal/config"
	"github.com/pkarcreative/pwa-australian-news/internal/feeds"
	"github.com/pkarcreative/pwa-australian-news/internal/gdelt"
	"github.com/pkarcreative/pwa-australian-news/internal/pcloud"
	"github.com/pkarcreative/pwa-australian-news/internal/reddit"
	"github.com/pkarcreative/pwa-australian-news/internal/redisclient"
	"github.com/pkarcreative/pwa-australian-news/internal/scrape"
	"github.com/pkarcreative/pwa-australian-news/internal/storage"
	"github.com/pkarcreative/pwa-australian-news/worker"
)

// app holds the wired object graph shared by serve and trigger.
type app struct {
	cache  *cache.Cache
	cloud  *pcloud.Client
	rdb    *redis.Client
	news   *worker.Refresher
	reddit *worker.Refresher
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func newCloud(cfg config.Config) *pcloud.Client {
	return pcloud.New(cfg.PCloud.BaseURL, cfg.PCloud.Username, cfg.PCloud.Password, cfg.PCloud.Timeout)
}

func newProvider(cfg config.Config) ai.Provider {
	switch cfg.Summarizer.Provider {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			slog.Warn("anthropic api key not set; summaries will be unavailable")
		}
		return ai.NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	default:
		if cfg.OpenAI.APIKey == "" {
			slog.Warn("openai api key not set; summaries will be unavailable")
		}
		return ai.NewOpenAI(ai.Config{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL})
	}
}

func newIndex(cfg config.Config) worker.Index {
	n := cfg.News
	if n.Index == "rss" {
		return feeds.NewIndex(n.Feeds, n.Lookback, n.MaxRecords)
	}
	return gdelt.NewClient(gdelt.Options{
		BaseURL:    n.GDELTBaseURL,
		Country:    n.SourceCountry,
		Language:   n.Language,
		Lookback:   n.Lookback,
		MaxRecords: n.MaxRecords,
	})
}

func newFetcher(cfg config.Config) worker.ArticleFetcher {
	direct := scrape.NewFetcher(cfg.News.FetchTimeout, cfg.News.MinChars, cfg.News.Referer)
	if !cfg.Cloudflare.Enabled() {
		return direct
	}
	slog.Info("cloudflare rendering enabled as scrape fallback")
	return scrape.Fallback{direct, scrape.NewCloudflare(cfg.Cloudflare.AccountID, cfg.Cloudflare.APIToken, 0, cfg.News.MinChars)}
}

func buildApp(cfg config.Config) (*app, error) {
	a := &app{cache: cache.New(), cloud: newCloud(cfg)}

	var memo worker.SummaryMemo
	if cfg.Redis.Enabled {
		rdb, err := redisclient.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		memo = storage.NewRedisStore(rdb, cfg.Redis.MemoTTL)
	}

	s := cfg.Summarizer
	summarizer := ai.NewSummarizer(newProvider(cfg), ai.Policy{
		MaxInputChars:    s.MaxInputChars,
		MaxWords:         s.MaxWords,
		MaxTokens:        cfg.OpenAI.MaxTokens,
		Attempts:         s.Attempts,
		TransientBackoff: s.TransientBackoff,
		ErrorAttempts:    s.ErrorAttempts,
		ErrorDelay:       s.ErrorDelay,
	})

	t := cfg.TTS
	publisher := &worker.TTSPublisher{
		Speech:        ai.NewOpenAISpeech(ai.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL}, cfg.OpenAI.TTSModel, cfg.OpenAI.Voice),
		Store:         a.cloud,
		ScratchDir:    cfg.App.ScratchDir,
		Attempts:      t.Attempts,
		RetryDelay:    t.RetryDelay,
		SettleDelay:   t.SettleDelay,
		Cooldown:      t.Cooldown,
		Workers:       t.Workers,
		MaxInputChars: t.MaxInputChars,
	}

	n := cfg.News
	newsPipeline := &worker.NewsPipeline{
		Index:            newIndex(cfg),
		Fetcher:          newFetcher(cfg),
		Summarizer:       summarizer,
		Publisher:        publisher,
		Memo:             memo,
		IndexAttempts:    n.IndexAttempts,
		IndexRetryDelay:  n.IndexRetryDelay,
		DomainSuffix:     n.DomainSuffix,
		Pacing:           s.Pacing,
		TitlePrefixChars: n.TitlePrefixChars,
		Folder:           n.Folder,
		Prefix:           n.Prefix,
	}

	r := cfg.Reddit
	redditPipeline := &worker.RedditPipeline{
		Source: reddit.NewClient(reddit.Options{
			ClientID:     r.ClientID,
			ClientSecret: r.ClientSecret,
			UserAgent:    r.UserAgent,
		}),
		Summarizer:        summarizer,
		Publisher:         publisher,
		Memo:              memo,
		Communities:       r.Communities,
		PostsPerCommunity: r.PostsPerCommunity,
		Lookback:          r.Lookback,
		CommentsPerPost:   r.CommentsPerPost,
		MinCommentScore:   r.MinCommentScore,
		MaxItems:          r.MaxItems,
		CommunityPause:    r.CommunityPause,
		Pacing:            s.Pacing,
		Folder:            r.Folder,
		Prefix:            r.Prefix,
	}

	a.news = &worker.Refresher{Kind: "news", Slot: a.cache.News, Store: a.cloud, Folder: n.Folder, Ingestor: newsPipeline}
	a.reddit = &worker.Refresher{Kind: "reddit", Slot: a.cache.Reddit, Store: a.cloud, Folder: r.Folder, Ingestor: redditPipeline}
	return a, nil
}
