package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sessionmesh/config"
	"github.com/hupe1980/sessionmesh/transcript"
	"github.com/hupe1980/sessionmesh/transcript/sqlite"
)

var transcriptSession string

func init() {
	transcriptCmd.Flags().StringVar(&transcriptSession, "session", "", "only print this session")
	rootCmd.AddCommand(transcriptCmd)
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript <user-id>",
	Short: "Decrypt and print a user's stored sessions and latest summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Driver != config.DriverSQLite {
			return errors.New("transcript needs store.driver sqlite; the memory store does not outlive the process")
		}

		sealer, err := transcript.NewSealer([]byte(cfg.Store.Secret))
		if err != nil {
			return fmt.Errorf("%w (set %s)", err, cfg.Store.SecretEnv)
		}
		backend, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		store := transcript.NewStore(sealer, backend)
		defer store.Close()

		ctx := cmd.Context()
		userID := args[0]
		out := cmd.OutOrStdout()

		sessions := []string{transcriptSession}
		if transcriptSession == "" {
			if sessions, err = backend.Sessions(ctx, sealer.Reference(userID)); err != nil {
				return err
			}
		}
		if len(sessions) == 0 {
			fmt.Fprintf(out, "No sessions stored for %s\n", userID)
		}

		for _, id := range sessions {
			turns, err := store.LoadSession(ctx, userID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s (%d turns)\n", id, len(turns))
			for i, t := range turns {
				fmt.Fprintf(out, "  %d. user: %s\n     bot:  %s\n", i+1, t.Input, t.Response)
			}
			fmt.Fprintln(out)
		}

		summary, ok, err := store.ReadLatestSummary(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(out, "Latest summary: %s\n", summary)
		}
		return nil
	},
}
