// Package config loads citypulse settings from defaults, an optional YAML file and
// CITYPULSE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Store      StoreConfig      `json:"store" yaml:"store"`
}

type ServerConfig struct {
	Port string `json:"port" yaml:"port"`

	// MaxRunSteps bounds a single POST /run request.
	MaxRunSteps int `json:"max_run_steps" yaml:"max_run_steps"`
}

type SimulationConfig struct {
	// Seed drives every random draw. Zero picks a time-based seed at startup.
	Seed int64 `json:"seed" yaml:"seed"`

	// Speed is the autoplay speed, 1 (slowest) to 4.
	Speed int `json:"speed" yaml:"speed"`

	BusUnitsMax   int `json:"bus_units_max" yaml:"bus_units_max"`
	TrainUnitsMax int `json:"train_units_max" yaml:"train_units_max"`

	// ReserveFraction is the share of active units the coordinator never hands out.
	ReserveFraction float64 `json:"reserve_fraction" yaml:"reserve_fraction"`
}

type LoggingConfig struct {
	// Level is "info", "debug", "trace" or "warn". Debug and trace also write
	// the hourly decision trace to DecisionsDir.
	Level        string `json:"level" yaml:"level"`
	DecisionsDir string `json:"decisions_dir" yaml:"decisions_dir"`
}

type StoreConfig struct {
	// Path of the SQLite run recorder. Empty disables recording.
	Path string `json:"path" yaml:"path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "4000",
			MaxRunSteps: 168,
		},
		Simulation: SimulationConfig{
			Seed:            42,
			Speed:           1,
			BusUnitsMax:     50,
			TrainUnitsMax:   20,
			ReserveFraction: 0.20,
		},
		Logging: LoggingConfig{
			Level:        "info",
			DecisionsDir: "data",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.MaxRunSteps < 1 {
		return fmt.Errorf("server.max_run_steps must be positive, got %d", c.Server.MaxRunSteps)
	}
	if c.Simulation.Speed < 1 || c.Simulation.Speed > 4 {
		return fmt.Errorf("simulation.speed must be between 1 and 4, got %d", c.Simulation.Speed)
	}
	if c.Simulation.BusUnitsMax < 0 || c.Simulation.TrainUnitsMax < 0 {
		return fmt.Errorf("service unit maxima must be non-negative")
	}
	if c.Simulation.ReserveFraction < 0 || c.Simulation.ReserveFraction >= 1 {
		return fmt.Errorf("simulation.reserve_fraction must be in [0,1), got %f", c.Simulation.ReserveFraction)
	}
	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true, "warn": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn)", c.Logging.Level)
	}
	return nil
}

func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("CITYPULSE_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CITYPULSE_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CITYPULSE_SEED: %w", err)
		}
		c.Simulation.Seed = n
	}
	if v := os.Getenv("CITYPULSE_SPEED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CITYPULSE_SPEED: %w", err)
		}
		c.Simulation.Speed = n
	}
	if v := os.Getenv("CITYPULSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CITYPULSE_DECISIONS_DIR"); v != "" {
		c.Logging.DecisionsDir = v
	}
	if v, ok := os.LookupEnv("CITYPULSE_DB_PATH"); ok {
		c.Store.Path = v
	}
	return nil
}
