package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// FrameCache caches fetched belief frames per sensor. Entries are scoped to
// a per-sensor version; invalidation bumps the version so stale entries
// simply stop being addressed and age out via TTL.
type FrameCache interface {
	Get(ctx context.Context, sensorID int64, fingerprint string) (*domain.BeliefFrame, bool)
	Set(ctx context.Context, sensorID int64, fingerprint string, f *domain.BeliefFrame)
	InvalidateSensor(ctx context.Context, sensorID int64)
}

// Redis is the FrameCache used when REDIS_URL is configured. Failures are
// logged and treated as misses; the cache never fails a query.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to the given URL. Returns nil when the URL is empty so
// callers can fall back to the in-memory cache.
func NewRedis(url string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func versionKey(sensorID int64) string {
	return "hindsight:frames:ver:" + strconv.FormatInt(sensorID, 10)
}

func frameKey(sensorID, version int64, fingerprint string) string {
	return fmt.Sprintf("hindsight:frames:%d:%d:%s", sensorID, version, fingerprint)
}

func (c *Redis) version(ctx context.Context, sensorID int64) int64 {
	v, err := c.client.Get(ctx, versionKey(sensorID)).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (c *Redis) Get(ctx context.Context, sensorID int64, fingerprint string) (*domain.BeliefFrame, bool) {
	data, err := c.client.Get(ctx, frameKey(sensorID, c.version(ctx, sensorID), fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("frame cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var f domain.BeliefFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("frame cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &f, true
}

func (c *Redis) Set(ctx context.Context, sensorID int64, fingerprint string, f *domain.BeliefFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Warn("frame cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, frameKey(sensorID, c.version(ctx, sensorID), fingerprint), data, c.ttl).Err(); err != nil {
		c.logger.Warn("frame cache write failed", zap.Error(err))
	}
}

func (c *Redis) InvalidateSensor(ctx context.Context, sensorID int64) {
	if err := c.client.Incr(ctx, versionKey(sensorID)).Err(); err != nil {
		c.logger.Warn("frame cache invalidation failed", zap.Error(err))
	}
}
