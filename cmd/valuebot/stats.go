package main

import (
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

func newStatsCmd(cfg *config.Config) *cobra.Command {
	var period, groupBy string
	cmd := &cobra.Command{
		Use:   "stats <userID>",
		Short: "Show betting statistics for a user",
		Long:  `Aggregate the settled bets of a user over a period: totals, win rate, net profit and ROI.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := domain.ParseGroupBy(groupBy)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.engine.GetStatistics(ctx, args[0], domain.Period(period), by)
			if err != nil {
				return err
			}
			a.console.PrintStatistics(stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", string(domain.PeriodAllTime), "daily|weekly|monthly|all_time")
	cmd.Flags().StringVar(&groupBy, "group-by", string(domain.GroupByNone), "none|sport|platform|market")
	return cmd
}
