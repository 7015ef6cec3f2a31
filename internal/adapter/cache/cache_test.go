package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alsrag/internal/adapter/embedding"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	_, ok := c.Get(ctx, "m", "riluzole")
	assert.False(t, ok)

	c.Put(ctx, "m", "riluzole", []float32{1, 2})
	vec, ok := c.Get(ctx, "m", "riluzole")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)

	_, ok = c.Get(ctx, "other-model", "riluzole")
	assert.False(t, ok, "keys must include the model")
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put(ctx, "m", "q", []float32{1})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get(ctx, "m", "q")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	c.Put(ctx, "m", "a", []float32{1})
	c.Put(ctx, "m", "b", []float32{2})
	c.Get(ctx, "m", "a")
	c.Put(ctx, "m", "c", []float32{3})

	_, okA := c.Get(ctx, "m", "a")
	_, okB := c.Get(ctx, "m", "b")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 2, c.Size())

	c.Invalidate()
	assert.Equal(t, 0, c.Size())
}

type countingEmbedder struct {
	*embedding.MockEmbedder
	calls int
	texts int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.texts += len(texts)
	return e.MockEmbedder.Embed(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: embedding.NewMockEmbedder(16)}
	e := NewCachedEmbedder(inner, NewMemoryCache(10, time.Minute), nil)

	first, err := e.Embed(ctx, []string{"als", "clinic"})
	require.NoError(t, err)

	second, err := e.Embed(ctx, []string{"clinic", "als", "new"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 3, inner.texts)
	assert.Equal(t, first[0], second[1])
	assert.Equal(t, first[1], second[0])
	assert.Len(t, second[2], 16)
	assert.Equal(t, 16, e.Dimension())
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0, -1.5, 3.25}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("ALSRAG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ALSRAG_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, addr, 0, "alsrag:test:", time.Minute, nil)
	require.NoError(t, err)
	defer c.Close()

	c.Put(ctx, "m", "redis-roundtrip", []float32{0.5, 0.25})
	vec, ok := c.Get(ctx, "m", "redis-roundtrip")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}
