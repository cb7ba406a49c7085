// Package config loads busmon settings from defaults, an optional YAML file
// and BUSMON_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Listen struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"listen"`

	Training struct {
		Samples       int     `mapstructure:"samples"`
		Contamination float64 `mapstructure:"contamination"`
		Trees         int     `mapstructure:"trees"`
		MaxSamples    int     `mapstructure:"max_samples"`
		Seed          int64   `mapstructure:"seed"`
	} `mapstructure:"training"`

	Window struct {
		Size int `mapstructure:"size"`
	} `mapstructure:"window"`

	Alert struct {
		Window    int `mapstructure:"window"`
		Threshold int `mapstructure:"threshold"`
	} `mapstructure:"alert"`

	Live struct {
		Duration       time.Duration `mapstructure:"duration"`
		SampleInterval time.Duration `mapstructure:"sample_interval"`
	} `mapstructure:"live"`

	Output struct {
		Dir         string `mapstructure:"dir"`
		TrainingCSV string `mapstructure:"training_csv"`
		LiveCSV     string `mapstructure:"live_csv"`
		Summary     string `mapstructure:"summary"`
	} `mapstructure:"output"`

	// Redis is optional; an empty Addr disables the alert store.
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	// Status is optional; an empty Addr disables the HTTP status server.
	Status struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"status"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logging"`

	Simulator struct {
		Target         string        `mapstructure:"target"`
		BusID          uint32        `mapstructure:"bus_id"`
		SensorInterval time.Duration `mapstructure:"sensor_interval"`
		FaultAfter     int           `mapstructure:"fault_after"`
		Seed           int64         `mapstructure:"seed"`
	} `mapstructure:"simulator"`
}

func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Listen.Address = "127.0.0.1:5000"

	cfg.Training.Samples = 200
	cfg.Training.Contamination = 0.02
	cfg.Training.Trees = 200
	cfg.Training.MaxSamples = 256
	cfg.Training.Seed = 42

	cfg.Window.Size = 20

	cfg.Alert.Window = 10
	cfg.Alert.Threshold = 3

	cfg.Live.Duration = 3 * time.Minute
	cfg.Live.SampleInterval = 10 * time.Millisecond

	cfg.Output.Dir = "."
	cfg.Output.TrainingCSV = "training_data.csv"
	cfg.Output.LiveCSV = "live_monitoring_log.csv"
	cfg.Output.Summary = "run_summary.yaml"

	cfg.Redis.TTL = time.Hour

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	cfg.Simulator.Target = "127.0.0.1:5000"
	cfg.Simulator.BusID = 0x100
	cfg.Simulator.SensorInterval = 100 * time.Millisecond
	cfg.Simulator.FaultAfter = 300
	cfg.Simulator.Seed = 0

	return cfg
}

// Load reads configuration. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BUSMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen.address", d.Listen.Address)

	v.SetDefault("training.samples", d.Training.Samples)
	v.SetDefault("training.contamination", d.Training.Contamination)
	v.SetDefault("training.trees", d.Training.Trees)
	v.SetDefault("training.max_samples", d.Training.MaxSamples)
	v.SetDefault("training.seed", d.Training.Seed)

	v.SetDefault("window.size", d.Window.Size)

	v.SetDefault("alert.window", d.Alert.Window)
	v.SetDefault("alert.threshold", d.Alert.Threshold)

	v.SetDefault("live.duration", d.Live.Duration)
	v.SetDefault("live.sample_interval", d.Live.SampleInterval)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.training_csv", d.Output.TrainingCSV)
	v.SetDefault("output.live_csv", d.Output.LiveCSV)
	v.SetDefault("output.summary", d.Output.Summary)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("status.addr", d.Status.Addr)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetDefault("simulator.target", d.Simulator.Target)
	v.SetDefault("simulator.bus_id", d.Simulator.BusID)
	v.SetDefault("simulator.sensor_interval", d.Simulator.SensorInterval)
	v.SetDefault("simulator.fault_after", d.Simulator.FaultAfter)
	v.SetDefault("simulator.seed", d.Simulator.Seed)
}

// Validate returns every problem found, not just the first.
func (c *Config) Validate() []error {
	var errs []error

	if c.Listen.Address == "" {
		errs = append(errs, errors.New("listen.address is required"))
	}
	if c.Training.Samples < 2 {
		errs = append(errs, fmt.Errorf("training.samples must be at least 2, got %d", c.Training.Samples))
	}
	if c.Training.Contamination <= 0 || c.Training.Contamination >= 1 {
		errs = append(errs, fmt.Errorf("training.contamination must be in (0, 1), got %v", c.Training.Contamination))
	}
	if c.Training.Trees < 1 {
		errs = append(errs, fmt.Errorf("training.trees must be positive, got %d", c.Training.Trees))
	}
	if c.Window.Size < 2 {
		errs = append(errs, fmt.Errorf("window.size must be at least 2, got %d", c.Window.Size))
	}
	if c.Alert.Window < 1 {
		errs = append(errs, fmt.Errorf("alert.window must be positive, got %d", c.Alert.Window))
	}
	if c.Alert.Threshold < 1 || c.Alert.Threshold > c.Alert.Window {
		errs = append(errs, fmt.Errorf("alert.threshold must be in [1, %d], got %d", c.Alert.Window, c.Alert.Threshold))
	}
	if c.Live.Duration <= 0 {
		errs = append(errs, fmt.Errorf("live.duration must be positive, got %s", c.Live.Duration))
	}
	if c.Live.SampleInterval < 0 {
		errs = append(errs, fmt.Errorf("live.sample_interval must not be negative, got %s", c.Live.SampleInterval))
	}

	if c.Simulator.Target == "" {
		errs = append(errs, errors.New("simulator.target is required"))
	}
	if c.Simulator.SensorInterval <= 0 {
		errs = append(errs, fmt.Errorf("simulator.sensor_interval must be positive, got %s", c.Simulator.SensorInterval))
	}
	if c.Simulator.FaultAfter < 0 {
		errs = append(errs, fmt.Errorf("simulator.fault_after must not be negative, got %d", c.Simulator.FaultAfter))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errs
}

// Err folds Validate into a single error, or nil.
func (c *Config) Err() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
