package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 768, cfg.VectorSize)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 32*1024*1024, cfg.MaxMessageSize)
}

func TestQdrantConfig_Validate(t *testing.T) {
	cfg := QdrantConfig{Host: "localhost", Port: 99999, VectorSize: 768}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 0}
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, isTransientError(nil))
	assert.False(t, isTransientError(errors.New("plain error")))

	assert.True(t, isTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, isTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.True(t, isTransientError(status.Error(grpccodes.Aborted, "aborted")))
	assert.True(t, isTransientError(status.Error(grpccodes.ResourceExhausted, "busy")))

	assert.False(t, isTransientError(status.Error(grpccodes.NotFound, "missing")))
	assert.False(t, isTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, isTransientError(status.Error(grpccodes.Unauthenticated, "nope")))
}

func TestBuildPayload_SplitPayload(t *testing.T) {
	payload := buildPayload("doc-1", "some text", map[string]interface{}{
		"agent":   "claude",
		"retries": 3,
		"ratio":   0.5,
		"pinned":  true,
	})

	id, content, metadata := splitPayload(payload)
	assert.Equal(t, "doc-1", id)
	assert.Equal(t, "some text", content)
	assert.Equal(t, "claude", metadata["agent"])
	assert.Equal(t, int64(3), metadata["retries"])
	assert.Equal(t, 0.5, metadata["ratio"])
	assert.Equal(t, true, metadata["pinned"])

	// Reserved keys never leak into metadata.
	assert.NotContains(t, metadata, "id")
	assert.NotContains(t, metadata, "content")
}

func TestSplitPayload_Nil(t *testing.T) {
	id, content, metadata := splitPayload(nil)
	assert.Empty(t, id)
	assert.Empty(t, content)
	assert.Nil(t, metadata)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(nil))
	assert.Nil(t, buildFilter(map[string]interface{}{}))

	// Non-string values are skipped.
	assert.Nil(t, buildFilter(map[string]interface{}{"count": 3}))

	filter := buildFilter(map[string]interface{}{"type": "compact"})
	require.NotNil(t, filter)
	require.Len(t, filter.Must, 1)

	field := filter.Must[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, "type", field.Key)
	assert.Equal(t, "compact", field.Match.GetKeyword())
}

func TestPointIDString(t *testing.T) {
	assert.Empty(t, pointIDString(nil))

	uuidID := qdrant.NewIDUUID("0b2c8e2a-9f5e-4d4e-8f4a-1c2d3e4f5a6b")
	assert.Equal(t, "0b2c8e2a-9f5e-4d4e-8f4a-1c2d3e4f5a6b", pointIDString(uuidID))

	numID := qdrant.NewIDNum(42)
	assert.Equal(t, "42", pointIDString(numID))
}
