package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busmon_frames_received_total",
		Help: "Total number of datagrams received, by result",
	}, []string{"result"})

	SamplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busmon_samples_processed_total",
		Help: "Total number of feature vectors produced, by phase",
	}, []string{"phase"})

	OutliersDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "busmon_outliers_detected_total",
		Help: "Total number of samples the model classified as outlier",
	})

	AlertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "busmon_alerts_raised_total",
		Help: "Total number of debounced alerts",
	})

	CurrentVoltage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busmon_voltage_mv",
		Help: "Most recent bus voltage in millivolts",
	})

	CurrentNoise = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "busmon_noise_std_mv",
		Help: "Voltage standard deviation over the feature window",
	})

	Phase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "busmon_phase",
		Help: "1 for the phase the monitor is currently in",
	}, []string{"phase"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "busmon_http_requests_total",
		Help: "Total number of status HTTP requests",
	}, []string{"method", "endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "busmon_http_request_duration_seconds",
		Help:    "Duration of status HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

const (
	PhaseTraining = "training"
	PhaseLive     = "live"
	PhaseStopped  = "stopped"
)

// SetPhase marks exactly one phase active.
func SetPhase(phase string) {
	for _, p := range []string{PhaseTraining, PhaseLive, PhaseStopped} {
		v := 0.0
		if p == phase {
			v = 1
		}
		Phase.WithLabelValues(p).Set(v)
	}
}
