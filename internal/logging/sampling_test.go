package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCoreDisabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	wrapped := newSampledCore(core, SamplingConfig{Enabled: false})
	assert.Equal(t, core, wrapped)
}

func TestSamplingDropsRepeats(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       time.Minute,
		Initial:    2,
		Thereafter: 0,
	})
	logger := zap.New(sampled)

	for i := 0; i < 10; i++ {
		logger.Info("repeated message")
	}

	assert.Equal(t, 2, logs.Len())
}

func TestSamplingNeverDropsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       time.Minute,
		Initial:    1,
		Thereafter: 0,
	})
	logger := zap.New(sampled)

	for i := 0; i < 5; i++ {
		logger.Error("remote unavailable")
	}

	assert.Equal(t, 5, logs.Len())
}

func TestLevelFilterCore(t *testing.T) {
	t.Run("min level", func(t *testing.T) {
		base, _ := observer.New(TraceLevel)
		c := &levelFilterCore{Core: base, minLevel: zapcore.ErrorLevel}
		assert.False(t, c.Enabled(zapcore.InfoLevel))
		assert.True(t, c.Enabled(zapcore.ErrorLevel))
	})

	t.Run("max level", func(t *testing.T) {
		base, _ := observer.New(TraceLevel)
		c := &levelFilterCore{Core: base, maxLevel: zapcore.WarnLevel}
		assert.True(t, c.Enabled(zapcore.InfoLevel))
		assert.False(t, c.Enabled(zapcore.ErrorLevel))
	})

	t.Run("with preserves filtering", func(t *testing.T) {
		base, logs := observer.New(TraceLevel)
		c := &levelFilterCore{Core: base, minLevel: zapcore.ErrorLevel}
		child := c.With([]zapcore.Field{zap.String("k", "v")})

		filtered, ok := child.(*levelFilterCore)
		require.True(t, ok)
		assert.False(t, filtered.Enabled(zapcore.InfoLevel))

		logger := zap.New(child)
		logger.Error("boom")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])
	})
}
