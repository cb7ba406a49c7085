// Package storage persists the training table, the live monitoring log and
// a run summary at process end.
package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bus-monitor/internal/models"

	"gopkg.in/yaml.v3"
)

var (
	TrainingHeader = []string{"Voltage", "DeltaVoltage", "NoiseStd", "Temperature"}
	LiveHeader     = []string{"Time", "Voltage", "DeltaVoltage", "NoiseStd", "Temperature", "Anomaly"}
)

// Summary is a human-readable report of one run. It is never read back.
type Summary struct {
	SessionID       string           `yaml:"session_id"`
	StartedAt       time.Time        `yaml:"started_at"`
	FinishedAt      time.Time        `yaml:"finished_at"`
	TrainingSamples int              `yaml:"training_samples"`
	TrainingDone    bool             `yaml:"training_done"`
	Baseline        *models.Baseline `yaml:"baseline,omitempty"`
	LiveSamples     int64            `yaml:"live_samples"`
	Outliers        int64            `yaml:"outliers"`
	Alerts          int64            `yaml:"alerts"`
	Interrupted     bool             `yaml:"interrupted"`
}

// formatBool writes booleans the way pandas exports them.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func vectorRow(v models.FeatureVector) []string {
	return []string{
		formatFloat(v.Voltage),
		formatFloat(v.DeltaVoltage),
		formatFloat(v.NoiseStd),
		formatFloat(v.Temperature),
	}
}

func EncodeTraining(w io.Writer, vectors []models.FeatureVector) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TrainingHeader); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := cw.Write(vectorRow(v)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func EncodeLive(w io.Writer, records []models.LiveRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LiveHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := append([]string{formatFloat(r.Time)}, vectorRow(r.Vector)...)
		row = append(row, formatBool(r.Anomaly))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTraining(path string, vectors []models.FeatureVector) error {
	return writeFile(path, func(w io.Writer) error { return EncodeTraining(w, vectors) })
}

func WriteLive(path string, records []models.LiveRecord) error {
	return writeFile(path, func(w io.Writer) error { return EncodeLive(w, records) })
}

func WriteSummary(path string, s Summary) error {
	return writeFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	})
}

func writeFile(path string, encode func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
