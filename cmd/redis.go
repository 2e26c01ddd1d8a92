package cmd

import "github.com/spf13/cobra"

// redisCmd groups utilities for the optional summary memo.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Summary memo (Redis) utilities",
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
