package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/application/engine"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// policyFlags sobreescriben la política del config solo si se pasan explícitamente.
type policyFlags struct {
	minValue      float64
	minConfidence float64
	maxEvents     int
	alerts        bool
}

func (p *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.minValue, "min-value", 0, "minimum adjusted edge as a fraction (0.05 = 5%)")
	cmd.Flags().Float64Var(&p.minConfidence, "min-confidence", 0, "minimum prediction confidence [0,1]")
	cmd.Flags().IntVar(&p.maxEvents, "max-events", 0, "maximum events evaluated per sport")
	cmd.Flags().BoolVar(&p.alerts, "alerts", false, "persist every opportunity as an ACTIVE alert")
}

func (p *policyFlags) apply(cmd *cobra.Command, base domain.Policy) (domain.Policy, error) {
	if cmd.Flags().Changed("min-value") {
		base.MinValue = p.minValue
	}
	if cmd.Flags().Changed("min-confidence") {
		base.MinConfidence = p.minConfidence
	}
	if cmd.Flags().Changed("max-events") {
		base.MaxEvents = p.maxEvents
	}
	if cmd.Flags().Changed("alerts") {
		base.AutoCreateAlerts = p.alerts
	}
	return base, base.Validate()
}

func newScanCmd(cfg *config.Config) *cobra.Command {
	var pf policyFlags
	cmd := &cobra.Command{
		Use:   "scan [sport...]",
		Short: "Scan upcoming events for value bets once",
		Long:  `Scan the given sports (or every sport in the config) once and print the value bets found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			policy, err := pf.apply(cmd, cfg.Policy)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				res, err := a.engine.ScanSport(ctx, args[0], policy)
				if err != nil && res.EventsScanned == 0 {
					return err
				}
				if err != nil {
					slog.Warn("scan completed with errors", "sport", args[0], "err", err)
				}
				return a.console.Notify(ctx, res.Opportunities)
			}

			sports := args
			if len(sports) == 0 {
				sports = cfg.Scanner.Sports
			}
			res, err := a.engine.ScanAll(ctx, sports, policy)
			if err != nil {
				if len(res.SportErrors) == len(sports) {
					return err
				}
				slog.Warn("scan completed with errors", "failed_sports", len(res.SportErrors), "err", err)
			}
			return a.console.Notify(ctx, res.Opportunities)
		},
	}
	pf.register(cmd)
	return cmd
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		pf   policyFlags
		once bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan every configured sport periodically",
		Long: `Run the scan loop: every interval expire due alerts, scan all configured
sports and print the value bets found. Stops on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			policy, err := pf.apply(cmd, cfg.Policy)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			r := engine.NewRunner(engine.RunnerConfig{
				Interval: cfg.ScanInterval(),
				Sports:   cfg.Scanner.Sports,
				Policy:   policy,
				Once:     once,
			}, a.engine, a.console)
			if err := r.Run(ctx); err != nil {
				return err
			}
			slog.Info("valuebot stopped cleanly")
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&once, "once", false, "run one scan cycle and exit")
	return cmd
}
