package analytics

import (
	"sync"
	"time"

	"bus-monitor/internal/ml"
	"bus-monitor/internal/models"
)

const recentAlertsCap = 100

// Analyzer scores live feature vectors against a trained detector, debounces
// the verdicts and explains alerts. Analyze is called from the processing loop
// only; the stats getters are safe to call from other goroutines.
type Analyzer struct {
	detector   ml.Detector
	baseline   models.Baseline
	aggregator *Aggregator
	sessionID  string
	now        func() time.Time

	mu     sync.RWMutex
	alerts []models.AlertEvent
	stats  models.AnalyticsStats
}

func NewAnalyzer(sessionID string, detector ml.Detector, baseline models.Baseline, alertWindow, alertThreshold int) *Analyzer {
	agg := NewAggregator(alertWindow, alertThreshold)
	b := baseline
	return &Analyzer{
		detector:   detector,
		baseline:   baseline,
		aggregator: agg,
		sessionID:  sessionID,
		now:        time.Now,
		alerts:     make([]models.AlertEvent, 0, recentAlertsCap),
		stats: models.AnalyticsStats{
			SessionID:      sessionID,
			Phase:          "live",
			AlertWindow:    agg.Window(),
			AlertThreshold: agg.Threshold(),
			Baseline:       &b,
		},
	}
}

func (a *Analyzer) Analyze(v models.FeatureVector) models.AnalysisResult {
	isOutlier := a.detector.Predict(v) == ml.Outlier
	alertNow := a.aggregator.Record(isOutlier)

	result := models.AnalysisResult{
		Vector:    v,
		IsOutlier: isOutlier,
		Outliers:  a.aggregator.Count(),
	}

	if alertNow {
		reasons := Explain(v, a.baseline)
		result.Alert = &models.AlertEvent{
			Timestamp:      a.now(),
			SessionID:      a.sessionID,
			Vector:         v,
			Reasons:        reasons,
			Recommendation: Recommend(reasons),
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.CurrentVoltage = v.Voltage
	a.stats.CurrentNoise = v.NoiseStd
	a.stats.TotalSamples++
	if isOutlier {
		a.stats.TotalOutliers++
	}
	a.stats.OutlierRate = float64(a.stats.TotalOutliers) / float64(a.stats.TotalSamples)

	if result.Alert != nil {
		a.stats.TotalAlerts++
		a.stats.LastAlertTime = result.Alert.Timestamp

		a.alerts = append(a.alerts, *result.Alert)
		if len(a.alerts) > recentAlertsCap {
			a.alerts = a.alerts[1:]
		}
	}

	return result
}

func (a *Analyzer) Baseline() models.Baseline {
	return a.baseline
}

func (a *Analyzer) GetCurrentStats() models.AnalyticsStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// GetRecentAlerts returns up to limit of the newest alerts, oldest first.
func (a *Analyzer) GetRecentAlerts(limit int) []models.AlertEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit > len(a.alerts) || limit < 0 {
		limit = len(a.alerts)
	}

	out := make([]models.AlertEvent, limit)
	copy(out, a.alerts[len(a.alerts)-limit:])
	return out
}
