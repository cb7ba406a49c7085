// Package monitor runs one monitoring session: collect a training batch, fit
// the baseline model, then score live samples until the duration elapses or
// the context is cancelled. All pipeline state is owned by the calling
// goroutine; only the stats getters may be used concurrently.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"bus-monitor/internal/analytics"
	"bus-monitor/internal/config"
	"bus-monitor/internal/frame"
	"bus-monitor/internal/metrics"
	"bus-monitor/internal/ml"
	"bus-monitor/internal/models"
	"bus-monitor/internal/storage"

	"go.uber.org/zap"
)

const progressEvery = 20

var ErrTrainingIncomplete = errors.New("training interrupted before enough samples were collected")

// Source delivers raw datagrams, blocking until one arrives or ctx is done.
type Source interface {
	Receive(ctx context.Context) ([]byte, error)
}

// AlertStore receives every raised alert. Failures are logged, never fatal.
type AlertStore interface {
	StoreAlert(ctx context.Context, alert models.AlertEvent) error
}

type Session struct {
	cfg    *config.Config
	id     string
	source Source
	store  AlertStore
	log    *zap.Logger

	mu           sync.RWMutex
	phase        string
	trainedCount int
	analyzer     *analytics.Analyzer
}

func NewSession(id string, cfg *config.Config, source Source, store AlertStore, log *zap.Logger) *Session {
	return &Session{
		cfg:    cfg,
		id:     id,
		source: source,
		store:  store,
		log:    log.With(zap.String("session", id)),
		phase:  metrics.PhaseTraining,
	}
}

func (s *Session) ID() string { return s.id }

// Run executes both phases and persists whatever was collected. A cancelled
// live phase is a clean stop; a cancelled training phase returns
// ErrTrainingIncomplete and no model.
func (s *Session) Run(ctx context.Context) (storage.Summary, error) {
	summary := storage.Summary{SessionID: s.id, StartedAt: time.Now()}
	defer s.setPhase(metrics.PhaseStopped)

	s.setPhase(metrics.PhaseTraining)
	vectors, err := s.collectTraining(ctx)
	summary.TrainingSamples = len(vectors)
	if err != nil {
		summary.FinishedAt = time.Now()
		summary.Interrupted = true
		s.writeSummary(summary)
		return summary, err
	}

	detector := ml.NewIsolationForest(ml.Options{
		Trees:         s.cfg.Training.Trees,
		MaxSamples:    s.cfg.Training.MaxSamples,
		Contamination: s.cfg.Training.Contamination,
		Seed:          s.cfg.Training.Seed,
	})
	baseline, err := ml.Train(detector, vectors)
	if err != nil {
		return summary, fmt.Errorf("failed to train baseline model: %w", err)
	}
	summary.TrainingDone = true
	summary.Baseline = &baseline

	s.log.Info("model ready, normal behavior learned",
		zap.Float64("min_voltage_mv", baseline.MinVoltage),
		zap.Float64("max_voltage_mv", baseline.MaxVoltage),
		zap.Float64("min_temp_c", baseline.MinTemp),
		zap.Float64("max_temp_c", baseline.MaxTemp),
		zap.Float64("std_delta", baseline.StdDelta),
		zap.Float64("mean_noise", baseline.MeanNoise))

	var persistErr error
	if err := storage.WriteTraining(s.outputPath(s.cfg.Output.TrainingCSV), vectors); err != nil {
		s.log.Error("failed to save training data", zap.Error(err))
		persistErr = err
	}

	analyzer := analytics.NewAnalyzer(s.id, detector, baseline, s.cfg.Alert.Window, s.cfg.Alert.Threshold)
	s.mu.Lock()
	s.analyzer = analyzer
	s.mu.Unlock()
	s.setPhase(metrics.PhaseLive)

	records, interrupted, err := s.monitorLive(ctx, analyzer)
	summary.Interrupted = interrupted

	if len(records) > 0 {
		if werr := storage.WriteLive(s.outputPath(s.cfg.Output.LiveCSV), records); werr != nil {
			s.log.Error("failed to save live log", zap.Error(werr))
			persistErr = errors.Join(persistErr, werr)
		} else {
			s.log.Info("saved live measurements", zap.Int("rows", len(records)),
				zap.String("path", s.outputPath(s.cfg.Output.LiveCSV)))
		}
	}

	stats := analyzer.GetCurrentStats()
	summary.LiveSamples = stats.TotalSamples
	summary.Outliers = stats.TotalOutliers
	summary.Alerts = stats.TotalAlerts
	summary.FinishedAt = time.Now()
	s.writeSummary(summary)

	if err != nil {
		return summary, err
	}
	return summary, persistErr
}

// collectTraining gathers exactly Training.Samples feature vectors using an
// extractor that is discarded afterwards.
func (s *Session) collectTraining(ctx context.Context) ([]models.FeatureVector, error) {
	target := s.cfg.Training.Samples
	extractor := analytics.NewExtractor(s.cfg.Window.Size)
	vectors := make([]models.FeatureVector, 0, target)

	s.log.Info("collecting normal data to learn from", zap.Int("target", target))

	for len(vectors) < target {
		data, err := s.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Warn("training stopped early",
					zap.Int("collected", len(vectors)), zap.Int("target", target))
				return vectors, ErrTrainingIncomplete
			}
			return vectors, fmt.Errorf("failed to receive frame: %w", err)
		}

		reading, ok := s.decode(data)
		if !ok {
			continue
		}

		fv, ok := extractor.Observe(reading)
		if !ok {
			continue
		}
		vectors = append(vectors, fv)
		metrics.SamplesProcessed.WithLabelValues(metrics.PhaseTraining).Inc()

		s.mu.Lock()
		s.trainedCount = len(vectors)
		s.mu.Unlock()

		if len(vectors)%progressEvery == 0 {
			s.log.Info("training progress", zap.Int("captured", len(vectors)), zap.Int("target", target))
		}
	}

	return vectors, nil
}

// monitorLive scores samples until Live.Duration elapses or ctx is cancelled.
// interrupted reports whether the parent context ended the phase.
func (s *Session) monitorLive(ctx context.Context, analyzer *analytics.Analyzer) ([]models.LiveRecord, bool, error) {
	liveCtx, cancel := context.WithTimeout(ctx, s.cfg.Live.Duration)
	defer cancel()

	extractor := analytics.NewExtractor(s.cfg.Window.Size)
	var records []models.LiveRecord
	start := time.Now()

	s.log.Info("starting live monitoring", zap.Duration("duration", s.cfg.Live.Duration))

	for {
		data, err := s.source.Receive(liveCtx)
		if err != nil {
			if liveCtx.Err() != nil {
				interrupted := ctx.Err() != nil
				if interrupted {
					s.log.Info("stopped by user")
				}
				return records, interrupted, nil
			}
			return records, false, fmt.Errorf("failed to receive frame: %w", err)
		}

		reading, ok := s.decode(data)
		if !ok {
			continue
		}

		fv, ok := extractor.Observe(reading)
		if !ok {
			continue
		}

		res := analyzer.Analyze(fv)
		s.report(liveCtx, res)

		records = append(records, models.LiveRecord{
			Time:    time.Since(start).Seconds(),
			Vector:  fv,
			Anomaly: res.IsOutlier,
		})

		if s.cfg.Live.SampleInterval > 0 {
			select {
			case <-liveCtx.Done():
			case <-time.After(s.cfg.Live.SampleInterval):
			}
		}
	}
}

func (s *Session) decode(data []byte) (models.Reading, bool) {
	reading, err := frame.Decode(data)
	if err != nil {
		metrics.FramesReceived.WithLabelValues("rejected").Inc()
		s.log.Debug("skipping malformed frame", zap.Int("length", len(data)))
		return models.Reading{}, false
	}
	metrics.FramesReceived.WithLabelValues("accepted").Inc()
	return reading, true
}

func (s *Session) report(ctx context.Context, res models.AnalysisResult) {
	fv := res.Vector
	metrics.SamplesProcessed.WithLabelValues(metrics.PhaseLive).Inc()
	metrics.CurrentVoltage.Set(fv.Voltage)
	metrics.CurrentNoise.Set(fv.NoiseStd)
	if res.IsOutlier {
		metrics.OutliersDetected.Inc()
	}

	if res.Alert == nil {
		s.log.Info("OK",
			zap.Float64("voltage_mv", fv.Voltage),
			zap.Float64("delta_mv", fv.DeltaVoltage),
			zap.Float64("noise", fv.NoiseStd))
		return
	}

	metrics.AlertsRaised.Inc()
	s.log.Warn("ALERT",
		zap.Strings("reasons", res.Alert.Reasons),
		zap.String("recommendation", res.Alert.Recommendation),
		zap.Float64("voltage_mv", fv.Voltage),
		zap.Float64("noise", fv.NoiseStd),
		zap.Float64("temp_c", fv.Temperature),
		zap.Int("outliers_in_window", res.Outliers))

	if s.store != nil {
		if err := s.store.StoreAlert(ctx, *res.Alert); err != nil {
			s.log.Warn("failed to store alert", zap.Error(err))
		}
	}
}

func (s *Session) writeSummary(summary storage.Summary) {
	if s.cfg.Output.Summary == "" {
		return
	}
	if err := storage.WriteSummary(s.outputPath(s.cfg.Output.Summary), summary); err != nil {
		s.log.Error("failed to save run summary", zap.Error(err))
	}
}

func (s *Session) outputPath(name string) string {
	return filepath.Join(s.cfg.Output.Dir, name)
}

func (s *Session) setPhase(phase string) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
	metrics.SetPhase(phase)
}

func (s *Session) GetCurrentStats() models.AnalyticsStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.analyzer == nil {
		return models.AnalyticsStats{
			SessionID:      s.id,
			Phase:          s.phase,
			TotalSamples:   int64(s.trainedCount),
			AlertWindow:    s.cfg.Alert.Window,
			AlertThreshold: s.cfg.Alert.Threshold,
		}
	}

	stats := s.analyzer.GetCurrentStats()
	stats.Phase = s.phase
	return stats
}

func (s *Session) GetRecentAlerts(limit int) []models.AlertEvent {
	s.mu.RLock()
	a := s.analyzer
	s.mu.RUnlock()

	if a == nil {
		return []models.AlertEvent{}
	}
	return a.GetRecentAlerts(limit)
}
