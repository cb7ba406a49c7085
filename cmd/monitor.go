package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"bus-monitor/internal/cache"
	"bus-monitor/internal/monitor"
	"bus-monitor/internal/server"
	"bus-monitor/internal/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMonitorCommand(a *app) *cobra.Command {
	var o flagOverrides

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Train on the incoming stream, then monitor it live",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen.Address = o.listen
			}
			if cmd.Flags().Changed("samples") {
				a.cfg.Training.Samples = o.samples
			}
			if cmd.Flags().Changed("duration") {
				a.cfg.Live.Duration = o.duration
			}
			if err := a.cfg.Err(); err != nil {
				return err
			}
			return a.runMonitor()
		},
	}

	cmd.Flags().StringVar(&o.listen, "listen", "", "UDP address to receive bus frames on")
	cmd.Flags().IntVar(&o.samples, "samples", 0, "number of training feature vectors to collect")
	cmd.Flags().DurationVar(&o.duration, "duration", 0, "how long to monitor live")
	return cmd
}

func (a *app) runMonitor() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	sessionID := uuid.NewString()
	log := a.log

	listener, err := transport.Listen(cfg.Listen.Address)
	if err != nil {
		return err
	}
	defer listener.Close()
	log.Info("monitor started", zap.String("listen", listener.Addr().String()), zap.String("session", sessionID))

	var (
		store   monitor.AlertStore
		archive server.AlertArchive
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			// alerts still reach the log and the status endpoint
			log.Warn("failed to connect to Redis, alerts will not be stored", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer redisClient.Close()
			store = redisClient
			archive = redisClient
		}
	}

	session := monitor.NewSession(sessionID, cfg, listener, store, log)

	serverDone := make(chan struct{})
	serverCtx, stopServer := context.WithCancel(ctx)
	if cfg.Status.Addr != "" {
		srv := server.New(session, archive, log)
		go func() {
			defer close(serverDone)
			if err := srv.Run(serverCtx, cfg.Status.Addr); err != nil {
				log.Error("status server failed", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}
	defer func() {
		stopServer()
		<-serverDone
	}()

	summary, err := session.Run(ctx)
	if errors.Is(err, monitor.ErrTrainingIncomplete) {
		log.Warn("no model was trained; restart the session to monitor",
			zap.Int("collected", summary.TrainingSamples), zap.Int("target", cfg.Training.Samples))
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("program finished",
		zap.Int64("live_samples", summary.LiveSamples),
		zap.Int64("outliers", summary.Outliers),
		zap.Int64("alerts", summary.Alerts),
		zap.Bool("interrupted", summary.Interrupted))
	return nil
}
