// Package config holds the runtime settings of render-template.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "RENDER_TEMPLATE_"

const (
	EngineJinja = "jinja"
	EngineGo    = "go"
	EngineRaw   = "raw"
)

// Config contains all configuration options of a render.
type Config struct {
	// Engine renders templates whose extension has no dedicated engine.
	Engine string
	// SearchPaths are directories under the template directory searched
	// after the template directory itself.
	SearchPaths []string
	// VarsFile is an optional YAML or JSON file of base variables.
	VarsFile string
	// Schema is an optional JSON Schema the variables must satisfy.
	Schema string
	// KeepTrailingNewline keeps the final newline of template sources.
	KeepTrailingNewline bool
	// MissingKey controls the go engine on missing map keys: zero, error or invalid.
	MissingKey string
	// LogLevel is the slog level of diagnostics written to stderr.
	LogLevel string

	// envErr records an environment value that could not be parsed.
	envErr error
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine:     EngineJinja,
		MissingKey: "zero",
		LogLevel:   "warn",
	}
}

// FromEnvironment creates a configuration from RENDER_TEMPLATE_* environment
// variables on top of the defaults. Values that cannot be parsed are
// reported by Validate.
func FromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv(envPrefix + "ENGINE"); val != "" {
		config.Engine = val
	}
	if val := os.Getenv(envPrefix + "SEARCH_PATH"); val != "" {
		config.SearchPaths = splitList(val)
	}
	if val := os.Getenv(envPrefix + "VARS_FILE"); val != "" {
		config.VarsFile = val
	}
	if val := os.Getenv(envPrefix + "SCHEMA"); val != "" {
		config.Schema = val
	}
	if val := os.Getenv(envPrefix + "KEEP_TRAILING_NEWLINE"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			config.envErr = fmt.Errorf("invalid %sKEEP_TRAILING_NEWLINE %q (expected true|false)", envPrefix, val)
		}
		config.KeepTrailingNewline = b
	}
	if val := os.Getenv(envPrefix + "MISSING_KEY"); val != "" {
		config.MissingKey = val
	}
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.envErr != nil {
		return c.envErr
	}
	switch c.Engine {
	case EngineJinja, EngineGo, EngineRaw:
	default:
		return fmt.Errorf("invalid engine %q (expected jinja|go|raw)", c.Engine)
	}
	switch c.MissingKey {
	case "zero", "error", "invalid":
	default:
		return fmt.Errorf("invalid missing key mode %q (expected zero|error|invalid)", c.MissingKey)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
