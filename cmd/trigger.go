package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	triggerServer  string
	triggerTimeout time.Duration
)

// triggerCmd asks a running server to refresh one kind, the way a cron job
// would.
var triggerCmd = &cobra.Command{
	Use:       "trigger <news|reddit>",
	Short:     "Trigger a refresh on a running server",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"news", "reddit"},
	RunE: func(cmd *cobra.Command, args []string) error {
		server := triggerServer
		if server == "" {
			server = "http://127.0.0.1:" + GetConfig().App.Port
		}
		endpoint := strings.TrimRight(server, "/") + "/api/fetch-" + args[0]

		ctx, cancel := context.WithTimeout(cmd.Context(), triggerTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

		var out struct {
			Status   string `json:"status"`
			Message  string `json:"message"`
			Count    int    `json:"count"`
			TTSCount int    `json:"tts_count"`
		}
		_ = json.Unmarshal(body, &out)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if out.Message == "" {
				out.Message = strings.TrimSpace(string(body))
			}
			return fmt.Errorf("fetch-%s: status %d: %s", args[0], resp.StatusCode, out.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, %d with audio\n", out.Message, out.Count, out.TTSCount)
		return nil
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerServer, "server", "", "base URL of the running server (default: http://127.0.0.1:<app.port>)")
	triggerCmd.Flags().DurationVar(&triggerTimeout, "timeout", 10*time.Minute, "how long to wait for the refresh to finish")
	rootCmd.AddCommand(triggerCmd)
}
