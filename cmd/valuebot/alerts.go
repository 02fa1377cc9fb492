package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

func newAlertsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage persisted value bet alerts",
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Show counts and value of all alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.engine.AlertSummary(ctx)
			if err != nil {
				return err
			}
			a.console.PrintAlertSummary(s)
			return nil
		},
	}

	var betID string
	taken := &cobra.Command{
		Use:   "taken <alertID>",
		Short: "Mark an ACTIVE alert as taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			alert, err := a.engine.MarkAlertTaken(ctx, args[0], betID)
			if err != nil {
				return err
			}
			printAlert(cmd, alert)
			return nil
		},
	}
	taken.Flags().StringVar(&betID, "bet-id", "", "bookmaker bet reference")

	var reason string
	invalidate := &cobra.Command{
		Use:   "invalidate <alertID>",
		Short: "Invalidate an ACTIVE alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			alert, err := a.engine.InvalidateAlert(ctx, args[0], reason)
			if err != nil {
				return err
			}
			printAlert(cmd, alert)
			return nil
		},
	}
	invalidate.Flags().StringVar(&reason, "reason", "", "why the alert is no longer valid")

	expire := &cobra.Command{
		Use:   "expire",
		Short: "Expire every ACTIVE alert past its expiry time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.ExpireAlerts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d alerts expired\n", n)
			return nil
		},
	}

	cmd.AddCommand(summary, taken, invalidate, expire)
	return cmd
}

func printAlert(cmd *cobra.Command, a domain.Alert) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s@%s %.2f value %.2f%%\n",
		a.ID, a.Status, a.Selection, a.Bookmaker, a.Odds, a.ValuePercentage)
}
