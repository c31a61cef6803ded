// Package config loads run and server settings with koanf. Sources are
// applied in order: defaults, YAML file, RELAY_* environment variables and
// finally values set by the caller (CLI flags).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides, e.g. RELAY_PARALLEL_LIMIT.
const EnvPrefix = "RELAY_"

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "relay.yml"

// RunConfig holds settings for scheduling a run.
type RunConfig struct {
	ParallelLimit    int           `koanf:"parallel_limit" validate:"min=1"`
	Timeout          time.Duration `koanf:"timeout" validate:"min=0"`
	PollInterval     time.Duration `koanf:"poll_interval" validate:"gt=0,lt=1s"`
	StartStagger     time.Duration `koanf:"start_stagger" validate:"min=0"`
	ProgressInterval time.Duration `koanf:"progress_interval" validate:"gt=0"`
	Strategy         string        `koanf:"strategy" validate:"omitempty,oneof=max-total-delay insertion"`
	DBPath           string        `koanf:"db_path"`
	NoStore          bool          `koanf:"no_store"`
	IgnoreFailures   bool          `koanf:"ignore_failures"`
	WorkDir          string        `koanf:"workdir"`
	LogLevel         string        `koanf:"log_level" validate:"oneof=debug info warn warning error DEBUG INFO WARN ERROR"`
	LogFormat        string        `koanf:"log_format" validate:"oneof=text json"`

	Server ServerConfig `koanf:"server"`
}

// ServerConfig holds configuration for the results API.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"` // Listen address (default ":8080")
}

// Defaults returns the default values keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"parallel_limit":    50,
		"timeout":           "1h",
		"poll_interval":     "100ms",
		"start_stagger":     "50ms",
		"progress_interval": "10s",
		"strategy":          "max-total-delay",
		"db_path":           "~/.relay/relay.db",
		"no_store":          false,
		"ignore_failures":   false,
		"workdir":           "",
		"log_level":         "info",
		"log_format":        "text",
		"server.addr":       ":8080",
	}
}

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Source  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s': %s", e.Source, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path of the YAML file. Empty means DefaultConfigFile, which may be absent.
	Path string
	// Overrides are applied last, keyed by koanf path.
	Overrides map[string]any
}

// Load builds a RunConfig from all sources.
func Load(opts LoadOptions) (*RunConfig, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	path := opts.Path
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	var cfg RunConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg, path); err != nil {
		return nil, err
	}
	cfg.DBPath = expandHomePath(cfg.DBPath)
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return &ValidationError{Source: path, Message: err.Error()}
	}
	return nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *RunConfig, source string) error {
	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Source: source, Field: toSnakeCase(fe.Field()), Message: formatFieldError(fe)}
		}
		return &ValidationError{Source: source, Message: err.Error()}
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// envTransform maps RELAY_PARALLEL_LIMIT to parallel_limit and
// RELAY_SERVER__ADDR to server.addr.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func toSnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			sb.WriteRune('_')
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}

func expandHomePath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
