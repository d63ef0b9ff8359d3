package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/cloudbox/tally"
	"github.com/cloudbox/tally/reporter"
)

const (
	defaultInterval      = 10 * time.Second
	defaultStatsInterval = time.Minute
	defaultPort          = 3031
	defaultSoakWorkers   = 8
	defaultSoakDuration  = 30 * time.Second
)

var errInvalidConfig = errors.New("invalid config")

type soakConfig struct {
	Workers int `yaml:"workers"`
	// Rate is operations per second per worker; 0 runs unthrottled.
	Rate     float64       `yaml:"rate"`
	Duration time.Duration `yaml:"duration"`
}

type config struct {
	// Reporter
	Interval time.Duration       `yaml:"interval"`
	Sink     reporter.SinkConfig `yaml:"sink"`
	Include  []string            `yaml:"include"`
	Exclude  []string            `yaml:"exclude"`
	Rename   []tally.Rewrite     `yaml:"rename"`

	// Verbosity of the registry and reporter loggers, on top of the global level.
	Verbosity     string        `yaml:"verbosity"`
	StatsInterval time.Duration `yaml:"stats-interval"`

	// HTTP
	Host []string `yaml:"host"`
	Port int      `yaml:"port"`

	Soak soakConfig `yaml:"soak"`
}

func (c config) reporter() reporter.Config {
	return reporter.Config{
		Interval: c.Interval,
		Include:  c.Include,
		Exclude:  c.Exclude,
		Rename:   c.Rename,
	}
}

func defaultConfig() config {
	return config{
		Interval: defaultInterval,
		Sink: reporter.SinkConfig{
			Path:       "counters.log",
			MaxBackups: 3,
		},
		StatsInterval: defaultStatsInterval,
		Host:          []string{""},
		Port:          defaultPort,
		Soak: soakConfig{
			Workers:  defaultSoakWorkers,
			Duration: defaultSoakDuration,
		},
	}
}

// loadConfig reads and decodes the YAML config file, applying defaults.
// A missing file yields the defaults.
func loadConfig(path string) (config, error) {
	// set default values
	cfg := defaultConfig()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().
			Str("path", path).
			Msg("Config Not Found, Using Defaults")
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("open config: %w", err)
	}

	decoder := yaml.NewDecoder(file)
	decoder.SetStrict(true)
	err = decoder.Decode(&cfg)
	_ = file.Close()

	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Soak.Workers <= 0 {
		return cfg, fmt.Errorf("soak.workers must be greater than 0: %w", errInvalidConfig)
	}

	return cfg, nil
}
