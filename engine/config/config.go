// Package config loads the settings of the sector streaming pipeline from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"

	"gopkg.in/yaml.v3"
)

// Config is the root of a stream configuration file.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Loader     LoaderConfig     `yaml:"loader"`
	Worker     WorkerConfig     `yaml:"worker"`
	Transforms TransformsConfig `yaml:"transforms"`
	Profiler   ProfilerConfig   `yaml:"profiler"`
}

// SourceConfig selects where sectors are read from.
type SourceConfig struct {
	Dir string `yaml:"dir"`
}

// LoaderConfig tunes the sector loader.
type LoaderConfig struct {
	Concurrency         int     `yaml:"concurrency"`
	FirstShaderLocation uint32  `yaml:"first_shader_location"`
	IoUThreshold        float64 `yaml:"iou_threshold"`
}

// WorkerConfig tunes the in-process parse worker.
type WorkerConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	Remote      bool          `yaml:"remote"`
}

// TransformsConfig holds the initial CDF to world matrix, column-major. Empty means identity.
type TransformsConfig struct {
	CdfToWorld []float32 `yaml:"cdf_to_world"`
}

// ProfilerConfig controls the periodic stats report.
type ProfilerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Source: SourceConfig{Dir: "sectors"},
		Loader: LoaderConfig{
			Concurrency:  4,
			IoUThreshold: 0.15,
		},
		Worker: WorkerConfig{
			Workers:     2,
			QueueSize:   256,
			IdleTimeout: time.Second,
			Remote:      true,
		},
		Profiler: ProfilerConfig{Interval: time.Second},
	}
}

// Load reads path and layers it over Default. Fields absent from the file keep their
// default values.
//
// Parameters:
//   - path: the YAML file to read
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Source.Dir == "" {
		errs = append(errs, errors.New("source.dir must be set"))
	}
	if c.Loader.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("loader.concurrency must be positive, got %d", c.Loader.Concurrency))
	}
	if c.Loader.IoUThreshold <= 0 || c.Loader.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("loader.iou_threshold must be in (0, 1], got %g", c.Loader.IoUThreshold))
	}
	if c.Worker.Workers < 1 {
		errs = append(errs, fmt.Errorf("worker.workers must be positive, got %d", c.Worker.Workers))
	}
	if c.Worker.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("worker.queue_size must be positive, got %d", c.Worker.QueueSize))
	}
	if c.Worker.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("worker.idle_timeout must be positive, got %s", c.Worker.IdleTimeout))
	}
	if n := len(c.Transforms.CdfToWorld); n != 0 && n != 16 {
		errs = append(errs, fmt.Errorf("transforms.cdf_to_world needs 16 values, got %d", n))
	}
	if c.Profiler.Enabled && c.Profiler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("profiler.interval must be positive, got %s", c.Profiler.Interval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Matrix returns the configured CDF to world matrix, or the identity.
func (t TransformsConfig) Matrix() common.Mat4 {
	if len(t.CdfToWorld) != 16 {
		return common.IdentityMat4()
	}
	var m common.Mat4
	copy(m[:], t.CdfToWorld)
	return m
}
