package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pkarcreative/pwa-australian-news/internal/cache"
	"github.com/pkarcreative/pwa-australian-news/internal/model"
	"github.com/pkarcreative/pwa-australian-news/worker"
)

// Refresher runs one single-flight ingestion.
type Refresher interface {
	Refresh(ctx context.Context) (worker.RefreshResult, error)
}

// LinkResolver turns an audio handle into a short-lived download URL.
type LinkResolver interface {
	ResolveDownloadURL(ctx context.Context, handle model.AudioHandle) (string, error)
}

// Options wires the server to the rest of the application.
type Options struct {
	Addr        string
	StaticDir   string
	CORSOrigins []string

	Cache    *cache.Cache
	Visitors *cache.Visitors
	News     Refresher
	Reddit   Refresher
	Links    LinkResolver

	// Upstream is used for audio downloads. Defaults to a client without an
	// overall timeout; requests are bound to the client request instead.
	Upstream *http.Client
}

// Server is the HTTP API. It implements worker.Worker.
type Server struct {
	opts   Options
	engine *gin.Engine
	news   *kind
	reddit *kind
}

func NewServer(opts Options) *Server {
	if opts.Upstream == nil {
		opts.Upstream = &http.Client{}
	}
	if opts.Visitors == nil {
		opts.Visitors = cache.NewVisitors()
	}
	s := &Server{opts: opts}
	s.news = newsKind(opts.Cache.News, opts.News)
	s.reddit = redditKind(opts.Cache.Reddit, opts.Reddit)
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))

	s.staticRoutes(r)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/news", s.list(s.news))
	api.GET("/reddit", s.list(s.reddit))
	api.GET("/fetch-news", s.fetch(s.news))
	api.POST("/fetch-news", s.fetch(s.news))
	api.GET("/fetch-reddit", s.fetch(s.reddit))
	api.POST("/fetch-reddit", s.fetch(s.reddit))
	api.GET("/tts/:id", s.audio(s.news))
	api.GET("/tts-reddit/:id", s.audio(s.reddit))
	api.GET("/status", s.status)
	api.GET("/stats", s.stats)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Range"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// Ingestion requests run for minutes, hence the long write timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("api: listening", "addr", s.opts.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	slog.Info("api: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
