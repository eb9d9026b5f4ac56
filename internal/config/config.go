// Package config loads cubist settings from an optional YAML file and
// CUBIST_ environment variables, and checks them against a CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: CUBIST_SHEPHERD_WORKERS
// sets shepherd.workers.
const EnvPrefix = "CUBIST"

//go:embed schema.cue
var schemaCUE string

// Config is the validated configuration.
type Config struct {
	Execution Execution `mapstructure:"execution" json:"execution"`
	Shepherd  Shepherd  `mapstructure:"shepherd" json:"shepherd"`
	Monitor   Monitor   `mapstructure:"monitor" json:"monitor"`
	Log       Log       `mapstructure:"log" json:"log"`
}

// Execution configures root executions.
type Execution struct {
	// DefaultTimeout applies to statements run without an explicit
	// timeout. Zero means unlimited.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" json:"default_timeout"`
}

// Shepherd configures the worker pool.
type Shepherd struct {
	Workers  int           `mapstructure:"workers" json:"workers"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
}

// Monitor configures the execution monitor.
type Monitor struct {
	// Database is the SQLite execution log. Empty disables the log.
	Database  string `mapstructure:"database" json:"database"`
	Metrics   bool   `mapstructure:"metrics" json:"metrics"`
	QueueSize int    `mapstructure:"queue_size" json:"queue_size"`
}

// Log configures the logger built by Config.Logger.
type Log struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

var defaults = map[string]any{
	"execution.default_timeout": 30 * time.Second,
	"shepherd.workers":          4,
	"shepherd.interval":         100 * time.Millisecond,
	"monitor.database":          "",
	"monitor.metrics":           false,
	"monitor.queue_size":        4096,
	"log.level":                 "info",
	"log.format":                "text",
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	return &Config{
		Execution: Execution{DefaultTimeout: defaults["execution.default_timeout"].(time.Duration)},
		Shepherd: Shepherd{
			Workers:  defaults["shepherd.workers"].(int),
			Interval: defaults["shepherd.interval"].(time.Duration),
		},
		Monitor: Monitor{QueueSize: defaults["monitor.queue_size"].(int)},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Validate checks c against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
