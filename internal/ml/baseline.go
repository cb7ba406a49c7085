package ml

import (
	"math"

	"bus-monitor/internal/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeBaseline aggregates the training batch. Standard deviations are
// sample (n-1) estimates; with a single row they are 0.
func ComputeBaseline(vectors []models.FeatureVector) models.Baseline {
	if len(vectors) == 0 {
		return models.Baseline{}
	}

	n := len(vectors)
	voltage := make([]float64, n)
	delta := make([]float64, n)
	noise := make([]float64, n)
	temp := make([]float64, n)
	for i, v := range vectors {
		voltage[i] = v.Voltage
		delta[i] = v.DeltaVoltage
		noise[i] = v.NoiseStd
		temp[i] = v.Temperature
	}

	meanDelta, stdDelta := meanStd(delta)
	meanNoise, stdNoise := meanStd(noise)

	return models.Baseline{
		MeanDelta:  meanDelta,
		StdDelta:   stdDelta,
		MeanNoise:  meanNoise,
		StdNoise:   stdNoise,
		MinVoltage: floats.Min(voltage),
		MaxVoltage: floats.Max(voltage),
		MinTemp:    floats.Min(temp),
		MaxTemp:    floats.Max(temp),
	}
}

func meanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
