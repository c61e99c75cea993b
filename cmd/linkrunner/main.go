package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "linkrunner",
	Short: "Run LinkedIn automation workflows against remote job providers",
	Long: `LinkRunner runs LinkedIn workflows (profile and post scraping, reactions,
lead saving and posting) against Bright Data, PhantomBuster and the LinkedIn API.
Every run is recorded so it can be inspected after the fact.`,
}

func init() {
	// Load .env file if present
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
