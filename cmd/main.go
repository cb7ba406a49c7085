package main

import (
	"fmt"
	"os"
	"time"

	"bus-monitor/internal/config"
	"bus-monitor/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "busmon",
		Short: "Learn normal bus telemetry and flag sustained anomalies",
		Long: "busmon listens for 13-byte bus frames over UDP, learns a baseline of normal\n" +
			"voltage and temperature behaviour, then raises advisory alerts when the live\n" +
			"stream departs from it. Alerts are recommendations only.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config file")

	monitor := newMonitorCommand(a)
	root.AddCommand(monitor, newSimulateCommand(a))
	// running busmon with no subcommand starts the monitor
	root.RunE = monitor.RunE
	root.Flags().AddFlagSet(monitor.Flags())

	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// flagOverrides applies command-line values on top of the loaded config.
type flagOverrides struct {
	listen   string
	samples  int
	duration time.Duration
	target   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
