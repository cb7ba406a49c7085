package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-monitor/internal/simulator"
	"bus-monitor/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSimulateCommand(a *app) *cobra.Command {
	var o flagOverrides

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the mock battery sensor and gateway, sending frames to the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("target") {
				a.cfg.Simulator.Target = o.target
			}
			if err := a.cfg.Err(); err != nil {
				return err
			}
			return a.runSimulator()
		},
	}
	cmd.Flags().StringVar(&o.target, "target", "", "UDP address of the monitor")
	return cmd
}

func (a *app) runSimulator() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg.Simulator
	sender, err := transport.Dial(cfg.Target)
	if err != nil {
		return err
	}
	defer sender.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	a.log.Info("virtual bus active", zap.String("target", cfg.Target), zap.Uint32("bus_id", cfg.BusID))

	sim := simulator.New(
		simulator.NewSensor(seed, cfg.FaultAfter),
		simulator.NewGateway(cfg.BusID),
		sender,
		cfg.SensorInterval,
		a.log,
	)
	return sim.Run(ctx)
}
