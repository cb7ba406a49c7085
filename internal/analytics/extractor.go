package analytics

import (
	"math"

	"bus-monitor/internal/models"

	"gonum.org/v1/gonum/stat"
)

const DefaultWindowSize = 20

// Extractor turns a reading stream into feature vectors. It keeps the previous
// voltage and the last W voltages; use a fresh Extractor per phase.
type Extractor struct {
	prevVoltage *float64
	voltages    *Window[float64]
}

func NewExtractor(windowSize int) *Extractor {
	return &Extractor{
		voltages: NewWindow[float64](windowSize),
	}
}

// Observe returns false for the first reading, which only seeds the delta.
func (e *Extractor) Observe(r models.Reading) (models.FeatureVector, bool) {
	voltage := float64(r.VoltageMV)

	if e.prevVoltage == nil {
		e.prevVoltage = &voltage
		return models.FeatureVector{}, false
	}

	delta := voltage - *e.prevVoltage
	e.voltages.Push(voltage)

	fv := models.FeatureVector{
		Voltage:      voltage,
		DeltaVoltage: delta,
		NoiseStd:     noiseStd(e.voltages.Values()),
		Temperature:  float64(r.TemperatureC),
	}

	*e.prevVoltage = voltage
	return fv, true
}

// noiseStd is the population standard deviation of the window, 0 below two samples.
func noiseStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}
