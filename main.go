package main

import (
	"os"

	"github.com/pkarcreative/pwa-australian-news/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
