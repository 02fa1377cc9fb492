package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/valuebot/config"
)

// rootFlags son los flags persistentes compartidos por todos los subcomandos.
type rootFlags struct {
	configPath string
	verbose    bool
	logFormat  string
	table      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:   "valuebot",
		Short: "Value bet and arbitrage scanner for sports betting markets",
		Long: `valuebot compares bookmaker odds against model predictions to find value bets,
detects cross-bookmaker arbitrage and reports betting statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if flags.verbose {
				loaded.Log.Level = "debug"
			}
			if flags.logFormat != "" {
				loaded.Log.Format = flags.logFormat
			}
			if cmd.Flags().Changed("table") {
				loaded.Scanner.Table = flags.table
			}
			setupLogger(loaded.Log)
			*cfg = *loaded
			return nil
		},
	}
	cfg = &config.Config{}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "config/config.yaml", "path to config file")
	pf.BoolVar(&flags.verbose, "verbose", false, "set log level to debug")
	pf.StringVar(&flags.logFormat, "format", "", "log format: text|json (overrides config)")
	pf.BoolVar(&flags.table, "table", false, "print full tables instead of the compact 1-line output")

	root.AddCommand(
		newScanCmd(cfg),
		newRunCmd(cfg),
		newServeCmd(cfg),
		newArbitrageCmd(cfg),
		newStatsCmd(cfg),
		newAlertsCmd(cfg),
		newBetsCmd(cfg),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stderr: stdout queda para tablas y resultados
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
