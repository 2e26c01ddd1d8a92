package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pkarcreative/pwa-australian-news/internal/config"
)

var (
	cfgFile string
	appCfg  config.Config
	logSink io.Closer
)

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pwa-australian-news",
	Short: "Australian news and discussion digests with narrated audio",
	Long:  "Serves summarized Australian news and Reddit discussions, with text-to-speech audio hosted on pCloud.",
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

// envBindings maps config keys to the plain environment names deployments
// already use. Keys present in the config file can also be overridden as
// NEWS_<SECTION>_<KEY>.
var envBindings = map[string]string{
	"app.port":              "PORT",
	"openai.api_key":        "OPENAI_API_KEY",
	"anthropic.api_key":     "ANTHROPIC_API_KEY",
	"pcloud.username":       "PCLOUD_USERNAME",
	"pcloud.password":       "PCLOUD_PASSWORD",
	"reddit.client_id":      "REDDIT_CLIENT_ID",
	"reddit.client_secret":  "REDDIT_CLIENT_SECRET",
	"reddit.user_agent":     "REDDIT_USER_AGENT",
	"redis.url":             "REDIS_URL",
	"cloudflare.account_id": "CLOUDFLARE_ACCOUNT_ID",
	"cloudflare.api_token":  "CLOUDFLARE_API_TOKEN",
	"summarizer.provider":   "SUMMARIZER_PROVIDER",
	"app.log_level":         "LOG_LEVEL",
}

func initConfig() {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pwa-australian-news")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix("news")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}

	appCfg.FillDefaults()
	if err := appCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	closer, err := setupLogging(appCfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	logSink = closer
}

// setupLogging installs the default slog logger. When a log file is
// configured, records go to both stderr and the file.
func setupLogging(app config.AppConfig) (io.Closer, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if app.LogFile != "" {
		f, err := os.OpenFile(app.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	opts := &slog.HandlerOptions{Level: parseLevel(app.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(app.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return closer, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}
