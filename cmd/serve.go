package cmd

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkarcreative/pwa-australian-news/internal/api"
	"github.com/pkarcreative/pwa-australian-news/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := api.NewServer(api.Options{
			Addr:        net.JoinHostPort("", cfg.App.Port),
			StaticDir:   cfg.App.StaticDir,
			CORSOrigins: cfg.App.CORSOrigins,
			Cache:       a.cache,
			News:        a.news,
			Reddit:      a.reddit,
			Links:       a.cloud,
		})

		ws := []worker.Worker{srv}
		if cfg.App.FetchOnStart {
			slog.Info("fetching news and discussions on start")
			ws = append(ws, &worker.Bootstrap{Refreshers: []*worker.Refresher{a.news, a.reddit}})
		}
		mgr := worker.NewManager(ws...)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			slog.Info("received signal, shutting down", "signal", s.String())
			cancel()
		}()

		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
