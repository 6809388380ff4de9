package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "agentcore - event-driven agent orchestration runtime",
	Long: `agentcore wires an event Dispatcher, a correlation Aggregator, an
LLM Broker with a recursive tool-call loop, and a token-budgeted Chat
Session into a runnable demo. It is glue around the pkg/agentcore
packages, not a production deployment.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML/JSON/TOML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs as JSON")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	jsonFlag, _ := cmd.Flags().GetBool("log-json")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelFlag)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFlag {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
