package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"trackmyevents/internal/config"
	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/source"
	"trackmyevents/internal/web"
)

const version = "0.1.0"

// rootFlags holds persistent CLI flag values.
type rootFlags struct {
	configPath string
	debug      bool
}

// app carries what every subcommand needs once PersistentPreRunE ran.
type app struct {
	flags rootFlags
	cfg   *config.Config
}

func main() {
	a := &app{}
	root := a.rootCommand()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	_ = appLog.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "trackmyevents",
		Short:         "Expand snoozed events into agenda, API and calendar views",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		a.serveCommand(),
		a.expandCommand(),
		a.agendaCommand(),
		a.plannerCommand(),
		a.exportCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.flags.configPath, err)
	}
	a.cfg = cfg

	level := appLog.ParseLevel(cfg.Log.Level)
	if a.flags.debug {
		level = appLog.LevelDebug
	}
	if err := appLog.Init(appLog.Options{Level: level, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("init log: %w", err)
	}

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"source", cfg.Source,
		"max_occurrences", cfg.Recurrence.MaxOccurrences,
		"max_span_days", cfg.Recurrence.MaxSpanDays,
	)
	return nil
}

func (a *app) loadDocument(ctx context.Context) (*source.Document, error) {
	return source.NewLoader(a.cfg.CacheDir).Load(ctx, a.cfg.Source)
}

func (a *app) serveCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and calendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}
			appLog.Info("trackmyevents starting", "version", version)

			srv := web.NewServer(a.cfg, source.NewLoader(a.cfg.CacheDir))
			if err := srv.Run(cmd.Context()); err != nil {
				return err
			}
			appLog.Info("trackmyevents exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
