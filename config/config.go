// Package config loads the engine settings from a TOML file, with an
// optional .env file providing environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Clock     ClockConfig     `toml:"clock"`
	Pool      PoolConfig      `toml:"pool"`
	Modifiers ModifiersConfig `toml:"modifiers"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Recording RecordingConfig `toml:"recording"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ClockConfig struct {
	MaxDeltaClamp float64 `toml:"max_delta_clamp"` // seconds per sample
	TimeScale     float64 `toml:"time_scale"`
}

type PoolConfig struct {
	Capacity     int     `toml:"capacity"`
	StartingSand int     `toml:"starting_sand"`
	RegenRate    float64 `toml:"regen_rate"` // units per second
}

type ModifiersConfig struct {
	Desperation     float64 `toml:"desperation"`
	Wounded         float64 `toml:"wounded"`
	NearFullDamping float64 `toml:"near_full_damping"`
	Blessing        float64 `toml:"blessing"`
	FavorHigh       float64 `toml:"favor_high"`
	FavorLow        float64 `toml:"favor_low"`
}

type SchedulerConfig struct {
	StarvationWarnThreshold int `toml:"starvation_warn_threshold"`
}

type MonitorConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type RecordingConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"` // empty picks a unique name
}

type ScriptingConfig struct {
	ScriptsDir string `toml:"scripts_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads the configuration at path on top of the defaults. A .env
// file in the working directory is applied first, and a handful of
// DUAT_* environment variables override the file.
func Load(path string) (*Config, error) {
	// Missing .env files are fine; variables may come from the shell.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Clock: ClockConfig{
			MaxDeltaClamp: 0.05,
			TimeScale:     1.0,
		},
		Pool: PoolConfig{
			Capacity:     6,
			StartingSand: 3,
			RegenRate:    1.0,
		},
		Modifiers: ModifiersConfig{
			Desperation:     1.5,
			Wounded:         1.2,
			NearFullDamping: 0.5,
			Blessing:        1.25,
			FavorHigh:       1.3,
			FavorLow:        0.7,
		},
		Scheduler: SchedulerConfig{
			StarvationWarnThreshold: 8,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Port:    0,
		},
		Recording: RecordingConfig{
			Enabled: false,
		},
		Scripting: ScriptingConfig{
			ScriptsDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("DUAT_MONITOR_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.Port = port
		}
	}

	if v, ok := os.LookupEnv("DUAT_SCRIPTS_DIR"); ok {
		cfg.Scripting.ScriptsDir = v
	}

	if v, ok := os.LookupEnv("DUAT_RECORDING_DB"); ok {
		cfg.Recording.DBPath = v
		cfg.Recording.Enabled = true
	}

	if v, ok := os.LookupEnv("DUAT_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.Clock.MaxDeltaClamp <= 0 {
		return fmt.Errorf("clock.max_delta_clamp must be positive, got %g",
			c.Clock.MaxDeltaClamp)
	}

	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool.capacity must be at least 1, got %d",
			c.Pool.Capacity)
	}

	if c.Pool.RegenRate <= 0 {
		return fmt.Errorf("pool.regen_rate must be positive, got %g",
			c.Pool.RegenRate)
	}

	return nil
}
