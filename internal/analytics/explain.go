package analytics

import (
	"math"
	"strings"

	"bus-monitor/internal/models"
)

const (
	ReasonSuddenChange  = "Sudden voltage change"
	ReasonNoiseGrowth   = "Noise growth detected"
	ReasonVoltageLow    = "Voltage below learned normal range"
	ReasonTemperature   = "Temperature out of normal range"
	ReasonBehavioral    = "Behavioral outlier"
	RecommendDerate     = "Recommend derating (reduce power)"
	RecommendSafeMode   = "Recommend safe mode / stop high load"
	RecommendCooling    = "Check cooling / thermal system"
	RecommendMonitoring = "Monitor only - no clear action yet"
)

// Explain lists the baseline rules a sample breaks, in priority order.
func Explain(v models.FeatureVector, b models.Baseline) []string {
	var reasons []string

	if math.Abs(v.DeltaVoltage) > 3*b.StdDelta {
		reasons = append(reasons, ReasonSuddenChange)
	}
	if v.NoiseStd > b.MeanNoise+3*b.StdNoise {
		reasons = append(reasons, ReasonNoiseGrowth)
	}
	if v.Voltage < b.MinVoltage {
		reasons = append(reasons, ReasonVoltageLow)
	}
	if v.Temperature < b.MinTemp || v.Temperature > b.MaxTemp {
		reasons = append(reasons, ReasonTemperature)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonBehavioral)
	}
	return reasons
}

// Recommend maps reasons to advisory text. It never drives an actuator.
func Recommend(reasons []string) string {
	joined := strings.Join(reasons, " + ")
	switch {
	case strings.Contains(joined, "Noise"):
		return RecommendDerate
	case strings.Contains(joined, "Voltage below"):
		return RecommendSafeMode
	case strings.Contains(joined, "Temperature"):
		return RecommendCooling
	default:
		return RecommendMonitoring
	}
}
