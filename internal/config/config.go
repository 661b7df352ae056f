// Package config loads runtime settings from a YAML file, KIRANA_* environment
// variables and an optional .env file, and validates them against an embedded
// CUE schema.
//
// Precedence, highest first: environment, config file, defaults. Keys are
// dotted ("database.path"); the matching variable replaces dots with
// underscores and adds the prefix (KIRANA_DATABASE_PATH).
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "KIRANA"

// Config is the decoded configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Engine   EngineConfig   `mapstructure:"engine" json:"engine"`
	Store    StoreConfig    `mapstructure:"store" json:"store"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// DatabaseConfig locates the SQLite file and sizes its connection pools.
type DatabaseConfig struct {
	Path          string `mapstructure:"path" json:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms" json:"busy_timeout_ms"`
	ReadConns     int    `mapstructure:"read_conns" json:"read_conns"`
}

// EngineConfig tunes live-query notification.
type EngineConfig struct {
	CoalesceWindow time.Duration `mapstructure:"coalesce_window" json:"coalesce_window"`
}

// StoreConfig tunes the write coordinator.
type StoreConfig struct {
	WriteRetries int `mapstructure:"write_retries" json:"write_retries"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// BusyTimeout returns the busy timeout as a duration.
func (d DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaults = map[string]any{
	"database.path":            "kirana.db",
	"database.busy_timeout_ms": 5000,
	"database.read_conns":      4,
	"engine.coalesce_window":   "15ms",
	"store.write_retries":      3,
	"log.level":                "info",
	"log.format":               "text",
}

// Options selects the sources Load reads besides the environment.
type Options struct {
	// File is a YAML config file. Empty means defaults and environment only.
	File string
	// EnvFile is a dotenv file whose variables are added to the environment
	// without overriding ones already set. A missing file is ignored.
	EnvFile string
}

// Load reads and validates the configuration.
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "kirana.db", BusyTimeoutMS: 5000, ReadConns: 4},
		Engine:   EngineConfig{CoalesceWindow: 15 * time.Millisecond},
		Store:    StoreConfig{WriteRetries: 3},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// ValidationError reports one field rejected by the schema.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// Validate checks c against the embedded schema and returns the first
// violation as a *ValidationError.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	err := schema.Unify(ctx.Encode(c)).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}
