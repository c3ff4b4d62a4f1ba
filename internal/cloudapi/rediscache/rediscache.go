// Package rediscache caches cloud API point lookups in Redis.
//
// Dependency resolution issues one Get per missing record. Across repeated
// runs against the same cloud those lookups are identical, so Client keeps
// the raw payloads in Redis for a TTL. Bulk listings always go to the cloud.
package rediscache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis connection and caching settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
	// TTL bounds how long a payload is served from cache
	TTL time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "capscan:",
		TTL:    10 * time.Minute,
	}
}

// Client decorates a cloudapi.Client with a Redis cache for Get
type Client struct {
	inner  cloudapi.Client
	redis  *redis.Client
	cloud  string
	config Config
	logger *zap.Logger
}

// Dial connects to Redis and wraps inner
func Dial(ctx context.Context, inner cloudapi.Client, cloud string, config Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return New(inner, rdb, cloud, config, logger), nil
}

// New wraps inner using an existing Redis client
func New(inner cloudapi.Client, rdb *redis.Client, cloud string, config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		inner:  inner,
		redis:  rdb,
		cloud:  cloud,
		config: config,
		logger: logger.Named("rediscache"),
	}
}

func (c *Client) key(rt domain.ResourceType, id string) string {
	return c.config.Prefix + domain.NewObjectID(c.cloud, rt, id).String()
}

// List passes through to the wrapped client
func (c *Client) List(ctx context.Context, rt domain.ResourceType, filter cloudapi.Filter) ([]cloudapi.Raw, error) {
	return c.inner.List(ctx, rt, filter)
}

// Get serves a cached payload or fetches and caches it.
// Redis failures fall back to the wrapped client.
func (c *Client) Get(ctx context.Context, rt domain.ResourceType, id string) (cloudapi.Raw, error) {
	key := c.key(rt, id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		raw, decodeErr := decode(data)
		if decodeErr == nil {
			c.logger.Debug("cache hit", zap.String("key", key))
			return raw, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	raw, err := c.inner.Get(ctx, rt, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(raw); err != nil {
		c.logger.Warn("payload not cacheable", zap.String("key", key), zap.Error(err))
	} else if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return raw, nil
}

// Invalidate drops every cached payload of the wrapped cloud
func (c *Client) Invalidate(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, c.config.Prefix+c.cloud+"/*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.redis.Close()
}

// decode keeps integers exact by decoding numbers as json.Number
func decode(data []byte) (cloudapi.Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw cloudapi.Raw
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
