package client

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/util/retry"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the client-side tuning knobs. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// ControlPlaneAddr is the address of the control plane endpoint.
	ControlPlaneAddr string `yaml:"control_plane_addr"`

	// User is the principal operations run as.
	User string `yaml:"user"`

	// SplitWorkers is the size of the worker pool applying split
	// batches.
	SplitWorkers int `yaml:"split_workers"`

	// RetryInitialBackoff, RetryMaxBackoff and RetryMultiplier shape the
	// backoff of the range binning loops.
	RetryInitialBackoff Duration `yaml:"retry_initial_backoff"`
	RetryMaxBackoff     Duration `yaml:"retry_max_backoff"`
	RetryMultiplier     float64  `yaml:"retry_multiplier"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	def := base.DefaultRetryOptions()
	return Config{
		ControlPlaneAddr:    "localhost:9999",
		User:                "root",
		SplitWorkers:        base.DefaultSplitWorkers,
		RetryInitialBackoff: Duration(def.InitialBackoff),
		RetryMaxBackoff:     Duration(def.MaxBackoff),
		RetryMultiplier:     def.Multiplier,
	}
}

// LoadConfig reads a YAML config file, filling unset fields from the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.SplitWorkers <= 0 {
		cfg.SplitWorkers = base.DefaultSplitWorkers
	}
	return cfg, nil
}

// RetryOptions returns the binning-loop retry policy described by the
// config.
func (c Config) RetryOptions() retry.Options {
	opts := base.DefaultRetryOptions()
	if c.RetryInitialBackoff > 0 {
		opts.InitialBackoff = time.Duration(c.RetryInitialBackoff)
		opts.Increment = time.Duration(c.RetryInitialBackoff)
	}
	if c.RetryMaxBackoff > 0 {
		opts.MaxBackoff = time.Duration(c.RetryMaxBackoff)
	}
	if c.RetryMultiplier > 0 {
		opts.Multiplier = c.RetryMultiplier
	}
	return opts
}
