package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit.
	Level zapcore.Level `koanf:"level"`

	// Format selects the stdout encoder: "json" or "console".
	Format string `koanf:"format"`

	// Output selects destinations. At least one must be enabled.
	Output OutputConfig `koanf:"output"`

	// Sampling rate-limits repeated entries below Error.
	Sampling SamplingConfig `koanf:"sampling"`

	// Caller controls caller annotation.
	Caller CallerConfig `koanf:"caller"`

	// Stacktrace sets the minimum level that captures a stack.
	Stacktrace StacktraceConfig `koanf:"stacktrace"`

	// Fields are constant fields attached to every entry.
	Fields map[string]string `koanf:"fields"`
}

// OutputConfig selects log destinations.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig controls entry sampling. Error and above are never
// sampled.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
}

// CallerConfig controls caller annotation.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig controls stack capture.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// NewDefaultConfig returns production defaults: JSON to stdout at Info,
// sampling enabled, stacktraces from Error.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{
			Stdout: true,
			OTEL:   false,
		},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 100,
		},
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: map[string]string{
			"service": "vmemd",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid format %q (must be json or console)", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled")
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return fmt.Errorf("sampling tick must be positive, got %s", c.Sampling.Tick)
		}
		if c.Sampling.Initial < 1 {
			return fmt.Errorf("sampling initial must be at least 1, got %d", c.Sampling.Initial)
		}
		if c.Sampling.Thereafter < 0 {
			return fmt.Errorf("sampling thereafter cannot be negative, got %d", c.Sampling.Thereafter)
		}
	}
	if c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip cannot be negative, got %d", c.Caller.Skip)
	}
	for key := range c.Fields {
		if key == "" {
			return fmt.Errorf("constant field keys cannot be empty")
		}
	}
	return nil
}
