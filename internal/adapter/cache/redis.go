package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisCache stores embeddings as little-endian float32 blobs.
// Errors degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(ctx context.Context, addr string, db int, prefix string, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.prefix+cacheKey(model, text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", zap.Error(err))
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("corrupt cached embedding", zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *RedisCache) Put(ctx context.Context, model, text string, vector []float32) {
	if err := c.client.Set(ctx, c.prefix+cacheKey(model, text), encodeVector(vector), c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.Error(err))
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
