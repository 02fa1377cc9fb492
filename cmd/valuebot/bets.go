package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/adapters/snapshot"
)

func newBetsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bets",
		Short: "Manage the settled bet history",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import settled bets from a snapshot file",
		Long:  `Load the bets section of a snapshot YAML into storage. Re-importing the same bet IDs does not duplicate them.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = cfg.Source.Snapshot
			}
			snap, err := snapshot.Load(path)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()

			bets := snap.Bets()
			if err := st.SaveSettledBets(ctx, bets); err != nil {
				return err
			}
			slog.Info("settled bets imported", "path", path, "count", len(bets))
			fmt.Fprintf(cmd.OutOrStdout(), "%d bets imported\n", len(bets))
			return nil
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "snapshot YAML with a bets section (default: source.snapshot)")

	cmd.AddCommand(importCmd)
	return cmd
}
