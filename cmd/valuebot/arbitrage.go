package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

func newArbitrageCmd(cfg *config.Config) *cobra.Command {
	var stake float64
	cmd := &cobra.Command{
		Use:   "arbitrage",
		Short: "Detect cross-bookmaker arbitrage",
	}
	cmd.PersistentFlags().Float64Var(&stake, "stake", 0, "total stake to split across legs (default: scanner.total_stake)")

	stakeOrDefault := func() float64 {
		if stake > 0 {
			return stake
		}
		return cfg.Scanner.TotalStake
	}

	market := &cobra.Command{
		Use:   "market <marketID>",
		Short: "Check a single market for arbitrage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			arb, err := a.engine.FindArbitrage(ctx, args[0], stakeOrDefault())
			if err != nil {
				return err
			}
			var arbs []domain.ArbitrageOpportunity
			if arb != nil {
				arbs = append(arbs, *arb)
			}
			a.console.PrintArbitrage(arbs)
			return nil
		},
	}

	var (
		minMargin float64
		limit     int
	)
	sport := &cobra.Command{
		Use:   "sport <sport>",
		Short: "Scan every upcoming market of a sport for arbitrage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			margin := cfg.Scanner.MinProfitMargin
			if cmd.Flags().Changed("min-margin") {
				margin = minMargin
			}
			arbs, err := a.engine.ScanArbitrage(ctx, args[0], margin, stakeOrDefault(), limit)
			if err != nil && len(arbs) == 0 {
				return err
			}
			if err != nil {
				slog.Warn("arbitrage scan completed with errors", "sport", args[0], "err", err)
			}
			a.console.PrintArbitrage(arbs)
			return nil
		},
	}
	sport.Flags().Float64Var(&minMargin, "min-margin", 0, "minimum profit margin as a fraction (default: scanner.min_profit_margin)")
	sport.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = all)")

	cmd.AddCommand(market, sport)
	return cmd
}
