package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sessionmesh/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sessionmesh",
	Short: "Summonable per-user conversation sessions with encrypted transcripts",
	Long: `sessionmesh runs bounded conversation sessions: a user summons the bot with a
vocabulary phrase, talks to it in normal or code mode, and the session ends on
dismissal, idle timeout or failure. Transcripts are stored encrypted per user
and each session leaves a short summary that seeds the next one.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (defaults are used when empty)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return config.LoadConfig(configPath)
}
