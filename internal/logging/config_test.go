package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.OTEL)
	assert.True(t, cfg.Sampling.Enabled)
	assert.Equal(t, time.Second, cfg.Sampling.Tick)
	assert.Equal(t, "vmemd", cfg.Fields["service"])

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "console format",
			mutate: func(c *Config) { c.Format = "console" },
		},
		{
			name:    "invalid format",
			mutate:  func(c *Config) { c.Format = "logfmt" },
			wantErr: "invalid format",
		},
		{
			name: "no outputs",
			mutate: func(c *Config) {
				c.Output.Stdout = false
				c.Output.OTEL = false
			},
			wantErr: "at least one output",
		},
		{
			name:    "zero sampling tick",
			mutate:  func(c *Config) { c.Sampling.Tick = 0 },
			wantErr: "sampling tick",
		},
		{
			name:    "zero sampling initial",
			mutate:  func(c *Config) { c.Sampling.Initial = 0 },
			wantErr: "sampling initial",
		},
		{
			name:    "negative sampling thereafter",
			mutate:  func(c *Config) { c.Sampling.Thereafter = -1 },
			wantErr: "sampling thereafter",
		},
		{
			name: "sampling disabled skips sampling checks",
			mutate: func(c *Config) {
				c.Sampling.Enabled = false
				c.Sampling.Tick = 0
			},
		},
		{
			name:    "negative caller skip",
			mutate:  func(c *Config) { c.Caller.Skip = -1 },
			wantErr: "caller skip",
		},
		{
			name:    "empty field key",
			mutate:  func(c *Config) { c.Fields = map[string]string{"": "x"} },
			wantErr: "field keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
