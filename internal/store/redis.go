package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/pv-feature-pipeline/internal/weather"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	forecastKeyPrefix = "pvf:"
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// ForecastCache keeps aggregated hourly forecasts in redis.
type ForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewForecastCache returns a redis-backed weather.Cache.
func NewForecastCache(client *redis.Client, ttl time.Duration) *ForecastCache {
	return &ForecastCache{client: client, ttl: ttl}
}

var _ weather.Cache = (*ForecastCache)(nil)

func (c *ForecastCache) key(k string) string {
	return forecastKeyPrefix + k
}

// Get returns the cached records. A missing key is a miss, not an error.
func (c *ForecastCache) Get(ctx context.Context, key string) ([]weather.Record, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []weather.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

// Set caches records under key for the configured TTL.
func (c *ForecastCache) Set(ctx context.Context, key string, records []weather.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}
