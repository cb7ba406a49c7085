package models

import "time"

// RawFrame is one fake-CAN datagram as it arrives on the bus socket.
type RawFrame struct {
	BusID   uint32
	Length  uint8
	Payload [8]byte
}

type Reading struct {
	BusID        uint32 `json:"bus_id"`
	VoltageMV    uint16 `json:"voltage_mv"`
	TemperatureC uint8  `json:"temperature_c"`
	Status       uint8  `json:"status"`
}

type FeatureVector struct {
	Voltage      float64 `json:"voltage" yaml:"voltage"`
	DeltaVoltage float64 `json:"delta_voltage" yaml:"delta_voltage"`
	NoiseStd     float64 `json:"noise_std" yaml:"noise_std"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
}

// Slice returns the vector in training column order.
func (v FeatureVector) Slice() []float64 {
	return []float64{v.Voltage, v.DeltaVoltage, v.NoiseStd, v.Temperature}
}

// Baseline is the frozen summary of the training batch used to explain alerts.
type Baseline struct {
	MeanDelta  float64 `json:"mean_delta" yaml:"mean_delta"`
	StdDelta   float64 `json:"std_delta" yaml:"std_delta"`
	MeanNoise  float64 `json:"mean_noise" yaml:"mean_noise"`
	StdNoise   float64 `json:"std_noise" yaml:"std_noise"`
	MinVoltage float64 `json:"min_voltage" yaml:"min_voltage"`
	MaxVoltage float64 `json:"max_voltage" yaml:"max_voltage"`
	MinTemp    float64 `json:"min_temp" yaml:"min_temp"`
	MaxTemp    float64 `json:"max_temp" yaml:"max_temp"`
}

type AlertEvent struct {
	Timestamp      time.Time     `json:"timestamp"`
	SessionID      string        `json:"session_id"`
	Vector         FeatureVector `json:"vector"`
	Reasons        []string      `json:"reasons"`
	Recommendation string        `json:"recommendation"`
}

// LiveRecord is one row of the live monitoring log.
type LiveRecord struct {
	Time    float64       `json:"time"`
	Vector  FeatureVector `json:"vector"`
	Anomaly bool          `json:"anomaly"`
}

type AnalysisResult struct {
	Vector    FeatureVector `json:"vector"`
	IsOutlier bool          `json:"is_outlier"`
	Alert     *AlertEvent   `json:"alert,omitempty"`
	Outliers  int           `json:"outliers_in_window"`
}

type AnalyticsStats struct {
	SessionID      string    `json:"session_id"`
	Phase          string    `json:"phase"`
	CurrentVoltage float64   `json:"current_voltage"`
	CurrentNoise   float64   `json:"current_noise"`
	TotalSamples   int64     `json:"total_samples"`
	TotalOutliers  int64     `json:"total_outliers"`
	TotalAlerts    int64     `json:"total_alerts"`
	OutlierRate    float64   `json:"outlier_rate"`
	LastAlertTime  time.Time `json:"last_alert_time,omitempty"`
	AlertWindow    int       `json:"alert_window"`
	AlertThreshold int       `json:"alert_threshold"`
	Baseline       *Baseline `json:"baseline,omitempty"`
}
