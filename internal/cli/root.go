// Package cli defines the ema-live commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-live/internal/config"
)

var (
	configPath string
	envFile    string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "ema-live",
	Short: "Talk to a realtime model with your microphone and camera",
	Long: `ema-live opens a realtime session with the model, streams microphone
audio and optional camera frames to it, and plays the spoken replies back
gaplessly while printing both sides of the conversation.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file, skipped when missing")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}
