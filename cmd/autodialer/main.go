// Package main provides the entry point for the autodialer CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	databaseURL string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "autodialer",
	Short: "AI-assisted autodialer for Indian phone numbers",
	Long: `Autodialer stores Indian phone numbers, places voice calls through Twilio and
understands plain-English commands such as "call all numbers" or "add 18001234567".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "Database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
