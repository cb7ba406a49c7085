// Package ml holds the baseline model: a fit/predict outlier detector and the
// frozen training statistics used to explain its verdicts.
package ml

import (
	"errors"
	"fmt"

	"bus-monitor/internal/models"
)

// Verdict is the per-sample classification.
type Verdict int

const (
	Inlier Verdict = iota
	Outlier
)

func (v Verdict) String() string {
	if v == Outlier {
		return "outlier"
	}
	return "inlier"
}

var (
	ErrNoTrainingData       = errors.New("no training data")
	ErrInvalidContamination = errors.New("contamination must be in (0, 1)")
)

// Detector is any unsupervised outlier model. Implementations must be
// deterministic for identical state and input.
type Detector interface {
	Fit(vectors []models.FeatureVector) error
	Predict(v models.FeatureVector) Verdict
}

// Train fits d on the batch and freezes the baseline statistics.
// Small batches degrade quality but are accepted.
func Train(d Detector, vectors []models.FeatureVector) (models.Baseline, error) {
	if len(vectors) == 0 {
		return models.Baseline{}, ErrNoTrainingData
	}
	if err := d.Fit(vectors); err != nil {
		return models.Baseline{}, fmt.Errorf("failed to fit detector: %w", err)
	}
	return ComputeBaseline(vectors), nil
}
