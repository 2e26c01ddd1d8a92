package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel     string   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string   `mapstructure:"log_format" yaml:"log_format"` // text or json
	LogFile      string   `mapstructure:"log_file" yaml:"log_file"`     // optional, tee'd with stderr
	Port         string   `mapstructure:"port" yaml:"port"`
	StaticDir    string   `mapstructure:"static_dir" yaml:"static_dir"`
	ScratchDir   string   `mapstructure:"scratch_dir" yaml:"scratch_dir"` // local temp storage before upload
	FetchOnStart bool     `mapstructure:"fetch_on_start" yaml:"fetch_on_start"`
	CORSOrigins  []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// RedisConfig holds redis connection settings for the optional summary memo.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	URL      string        `mapstructure:"url" yaml:"url"` // takes precedence over addr when set
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	MemoTTL  time.Duration `mapstructure:"memo_ttl" yaml:"memo_ttl"`
}

// OpenAIConfig configures chat completions and speech synthesis.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"` // optional
	Model     string `mapstructure:"model" yaml:"model"`
	TTSModel  string `mapstructure:"tts_model" yaml:"tts_model"`
	Voice     string `mapstructure:"voice" yaml:"voice"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// AnthropicConfig configures the alternative summarizer provider.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// SummarizerConfig controls the summarizer retry policy and bounds.
type SummarizerConfig struct {
	Provider         string        `mapstructure:"provider" yaml:"provider"` // openai or anthropic
	MaxInputChars    int           `mapstructure:"max_input_chars" yaml:"max_input_chars"`
	MaxWords         int           `mapstructure:"max_words" yaml:"max_words"`
	Attempts         int           `mapstructure:"attempts" yaml:"attempts"`
	TransientBackoff time.Duration `mapstructure:"transient_backoff" yaml:"transient_backoff"` // multiplied by attempt number
	ErrorAttempts    int           `mapstructure:"error_attempts" yaml:"error_attempts"`
	ErrorDelay       time.Duration `mapstructure:"error_delay" yaml:"error_delay"`
	Pacing           time.Duration `mapstructure:"pacing" yaml:"pacing"` // pause between summarizer calls
}

// NewsConfig controls the news ingestion pipeline.
type NewsConfig struct {
	Index            string        `mapstructure:"index" yaml:"index"` // gdelt or rss
	GDELTBaseURL     string        `mapstructure:"gdelt_base_url" yaml:"gdelt_base_url"`
	Feeds            []string      `mapstructure:"feeds" yaml:"feeds"` // used when index == rss
	SourceCountry    string        `mapstructure:"source_country" yaml:"source_country"`
	Language         string        `mapstructure:"language" yaml:"language"`
	Lookback         time.Duration `mapstructure:"lookback" yaml:"lookback"`
	MaxRecords       int           `mapstructure:"max_records" yaml:"max_records"`
	IndexAttempts    int           `mapstructure:"index_attempts" yaml:"index_attempts"`
	IndexRetryDelay  time.Duration `mapstructure:"index_retry_delay" yaml:"index_retry_delay"`
	DomainSuffix     string        `mapstructure:"domain_suffix" yaml:"domain_suffix"`
	MinChars         int           `mapstructure:"min_chars" yaml:"min_chars"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	Referer          string        `mapstructure:"referer" yaml:"referer"`
	TitlePrefixChars int           `mapstructure:"title_prefix_chars" yaml:"title_prefix_chars"`
	Folder           string        `mapstructure:"folder" yaml:"folder"`
	Prefix           string        `mapstructure:"prefix" yaml:"prefix"`
}

// RedditConfig controls the discussion ingestion pipeline.
type RedditConfig struct {
	ClientID          string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret" yaml:"client_secret"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Communities       []string      `mapstructure:"communities" yaml:"communities"`
	PostsPerCommunity int           `mapstructure:"posts_per_community" yaml:"posts_per_community"`
	Lookback          time.Duration `mapstructure:"lookback" yaml:"lookback"`
	CommentsPerPost   int           `mapstructure:"comments_per_post" yaml:"comments_per_post"`
	MinCommentScore   int           `mapstructure:"min_comment_score" yaml:"min_comment_score"`
	MaxItems          int           `mapstructure:"max_items" yaml:"max_items"`
	CommunityPause    time.Duration `mapstructure:"community_pause" yaml:"community_pause"`
	Folder            string        `mapstructure:"folder" yaml:"folder"`
	Prefix            string        `mapstructure:"prefix" yaml:"prefix"`
}

// PCloudConfig holds blob store credentials.
type PCloudConfig struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CloudflareConfig enables the rendered-page fallback scraper when both
// fields are set.
type CloudflareConfig struct {
	AccountID string `mapstructure:"account_id" yaml:"account_id"`
	APIToken  string `mapstructure:"api_token" yaml:"api_token"`
}

// Enabled reports whether the fallback scraper can be used.
func (c CloudflareConfig) Enabled() bool {
	return c.AccountID != "" && c.APIToken != ""
}

// TTSConfig controls the publishing pipeline pacing.
type TTSConfig struct {
	Attempts      int           `mapstructure:"attempts" yaml:"attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Cooldown      time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	MaxInputChars int           `mapstructure:"max_input_chars" yaml:"max_input_chars"`
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig        `mapstructure:"app" yaml:"app"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	OpenAI     OpenAIConfig     `mapstructure:"openai" yaml:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic" yaml:"anthropic"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" yaml:"summarizer"`
	News       NewsConfig       `mapstructure:"news" yaml:"news"`
	Reddit     RedditConfig     `mapstructure:"reddit" yaml:"reddit"`
	PCloud     PCloudConfig     `mapstructure:"pcloud" yaml:"pcloud"`
	TTS        TTSConfig        `mapstructure:"tts" yaml:"tts"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare" yaml:"cloudflare"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "text"
	}
	if c.App.Port == "" {
		c.App.Port = "5000"
	}
	if c.App.StaticDir == "" {
		c.App.StaticDir = "static"
	}
	if c.App.ScratchDir == "" {
		c.App.ScratchDir = "static/tts_audio"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.MemoTTL == 0 {
		c.Redis.MemoTTL = 48 * time.Hour
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-5-nano"
	}
	if c.OpenAI.TTSModel == "" {
		c.OpenAI.TTSModel = "tts-1"
	}
	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "alloy"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 500
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-haiku-4-5"
	}

	s := &c.Summarizer
	if s.Provider == "" {
		s.Provider = "openai"
	}
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.MaxInputChars == 0 {
		s.MaxInputChars = 8000
	}
	if s.MaxWords == 0 {
		s.MaxWords = 60
	}
	if s.Attempts == 0 {
		s.Attempts = 3
	}
	if s.TransientBackoff == 0 {
		s.TransientBackoff = 5 * time.Second
	}
	if s.ErrorAttempts == 0 {
		s.ErrorAttempts = 2
	}
	if s.ErrorDelay == 0 {
		s.ErrorDelay = 2 * time.Second
	}
	if s.Pacing == 0 {
		s.Pacing = time.Second
	}

	n := &c.News
	if n.Index == "" {
		n.Index = "gdelt"
	}
	n.Index = strings.ToLower(strings.TrimSpace(n.Index))
	if n.GDELTBaseURL == "" {
		n.GDELTBaseURL = "https://api.gdeltproject.org/api/v2/doc/doc"
	}
	// AS is Australia in FIPS; AU would be Austria.
	if n.SourceCountry == "" {
		n.SourceCountry = "AS"
	}
	if n.Language == "" {
		n.Language = "eng"
	}
	if n.Lookback == 0 {
		n.Lookback = 10 * time.Hour
	}
	if n.MaxRecords == 0 {
		n.MaxRecords = 20
	}
	if n.IndexAttempts == 0 {
		n.IndexAttempts = 4
	}
	if n.IndexRetryDelay == 0 {
		n.IndexRetryDelay = 3 * time.Second
	}
	if n.DomainSuffix == "" {
		n.DomainSuffix = ".au"
	}
	if n.MinChars == 0 {
		n.MinChars = 50
	}
	if n.FetchTimeout == 0 {
		n.FetchTimeout = 10 * time.Second
	}
	if n.Referer == "" {
		n.Referer = "https://news.google.com/"
	}
	if n.TitlePrefixChars == 0 {
		n.TitlePrefixChars = 50
	}
	if n.Folder == "" {
		n.Folder = "/tts_australian"
	}
	if n.Prefix == "" {
		n.Prefix = "news"
	}

	r := &c.Reddit
	if r.UserAgent == "" {
		r.UserAgent = "pwa-australian-news/1.0"
	}
	if len(r.Communities) == 0 {
		r.Communities = []string{"australia", "AustralianPolitics", "sydney", "melbourne"}
	}
	if r.PostsPerCommunity == 0 {
		r.PostsPerCommunity = 10
	}
	if r.Lookback == 0 {
		r.Lookback = 24 * time.Hour
	}
	if r.CommentsPerPost == 0 {
		r.CommentsPerPost = 5
	}
	if r.MinCommentScore == 0 {
		r.MinCommentScore = 2
	}
	if r.MaxItems == 0 {
		r.MaxItems = 15
	}
	if r.CommunityPause == 0 {
		r.CommunityPause = time.Second
	}
	if r.Folder == "" {
		r.Folder = "/tts_australian_reddit"
	}
	if r.Prefix == "" {
		r.Prefix = "reddit"
	}

	if c.PCloud.BaseURL == "" {
		c.PCloud.BaseURL = "https://api.pcloud.com"
	}
	if c.PCloud.Timeout == 0 {
		c.PCloud.Timeout = 60 * time.Second
	}

	t := &c.TTS
	if t.Attempts == 0 {
		t.Attempts = 2
	}
	if t.RetryDelay == 0 {
		t.RetryDelay = 2 * time.Second
	}
	if t.SettleDelay == 0 {
		t.SettleDelay = 2 * time.Second
	}
	if t.Cooldown == 0 {
		t.Cooldown = 4 * time.Second
	}
	if t.Workers == 0 {
		t.Workers = 1
	}
	if t.MaxInputChars == 0 {
		t.MaxInputChars = 4096
	}
}

// Validate reports configuration values FillDefaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	switch c.Summarizer.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("summarizer.provider: unknown provider %q", c.Summarizer.Provider))
	}
	switch c.News.Index {
	case "gdelt":
	case "rss":
		if len(c.News.Feeds) == 0 {
			errs = append(errs, errors.New("news.feeds: required when news.index is rss"))
		}
	default:
		errs = append(errs, fmt.Errorf("news.index: unknown index %q", c.News.Index))
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("app.log_format: unknown format %q", c.App.LogFormat))
	}
	positive := map[string]int{
		"summarizer.attempts":        c.Summarizer.Attempts,
		"summarizer.error_attempts":  c.Summarizer.ErrorAttempts,
		"summarizer.max_input_chars": c.Summarizer.MaxInputChars,
		"news.max_records":           c.News.MaxRecords,
		"news.index_attempts":        c.News.IndexAttempts,
		"reddit.max_items":           c.Reddit.MaxItems,
		"tts.attempts":               c.TTS.Attempts,
		"tts.workers":                c.TTS.Workers,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", key, positive[key]))
		}
	}
	return errors.Join(errs...)
}

// Masked returns a copy with secrets replaced, for display.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "******"
	}
	c.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	c.Anthropic.APIKey = mask(c.Anthropic.APIKey)
	c.Reddit.ClientSecret = mask(c.Reddit.ClientSecret)
	c.PCloud.Password = mask(c.PCloud.Password)
	c.Redis.Password = mask(c.Redis.Password)
	c.Cloudflare.APIToken = mask(c.Cloudflare.APIToken)
	if c.Redis.URL != "" {
		c.Redis.URL = mask(c.Redis.URL)
	}
	return c
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
