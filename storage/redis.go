package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sanjayganvkar/adfdoc/types"
)

const (
	templatePrefix = "adfdoc:template:"
	reportPrefix   = "adfdoc:report:"
)

// ErrNotFound is returned when a requested key is absent from Redis.
var ErrNotFound = errors.New("resource not found")

// RedisStorage is a Redis-backed implementation of the Storage interface,
// useful when generated reports are served by more than one process.
type RedisStorage struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
}

// NewRedisStorage connects to Redis and verifies the connection with a ping.
func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &RedisStorage{client: client}, nil
}

// withContextError handles context cancellation for operations that only
// return an error.
func withContextError(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// saveToRedis marshals a value and stores it under prefix+id.
func (s *RedisStorage) saveToRedis(ctx context.Context, prefix string, id uint64, value interface{}) error {
	return withContextError(ctx, func() error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s%d: %v", prefix, id, err)
		}
		key := fmt.Sprintf("%s%d", prefix, id)
		if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to set %s in Redis: %v", key, err)
		}
		return nil
	})
}

// getFromRedis retrieves and unmarshals the value stored under prefix+id.
func getFromRedis[T any](ctx context.Context, client *redis.Client, prefix string, id uint64) (T, error) {
	return withContext(ctx, func() (T, error) {
		var zero T
		key := fmt.Sprintf("%s%d", prefix, id)
		data, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return zero, fmt.Errorf("%w: key=%s", ErrNotFound, key)
		} else if err != nil {
			return zero, fmt.Errorf("failed to get %s from Redis: %v", key, err)
		}

		var result T
		if err := json.Unmarshal(data, &result); err != nil {
			return zero, fmt.Errorf("failed to unmarshal %s: %v", key, err)
		}
		return result, nil
	})
}

// SaveTemplate saves a template to Redis.
func (s *RedisStorage) SaveTemplate(ctx context.Context, tpl types.Template) error {
	return s.saveToRedis(ctx, templatePrefix, tpl.ID, tpl)
}

// GetTemplate retrieves a template from Redis.
func (s *RedisStorage) GetTemplate(ctx context.Context, id uint64) (types.Template, error) {
	return getFromRedis[types.Template](ctx, s.client, templatePrefix, id)
}

// SaveReport saves a factory report to Redis.
func (s *RedisStorage) SaveReport(ctx context.Context, rep types.FactoryReport) error {
	return s.saveToRedis(ctx, reportPrefix, rep.ID, rep)
}

// GetReport retrieves a factory report from Redis.
func (s *RedisStorage) GetReport(ctx context.Context, id uint64) (types.FactoryReport, error) {
	return getFromRedis[types.FactoryReport](ctx, s.client, reportPrefix, id)
}

// SaveTemplates saves multiple templates to Redis using pipelining.
func (s *RedisStorage) SaveTemplates(ctx context.Context, tpls []types.Template) error {
	return withContextError(ctx, func() error {
		pipe := s.client.Pipeline()
		for _, tpl := range tpls {
			data, err := json.Marshal(tpl)
			if err != nil {
				return fmt.Errorf("failed to marshal template %d: %v", tpl.ID, err)
			}
			key := fmt.Sprintf("%s%d", templatePrefix, tpl.ID)
			pipe.Set(ctx, key, data, 0)
		}
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to execute pipeline for templates: %v", err)
		}
		return nil
	})
}

// ClearReports removes reports generated before the given unix-milli cutoff.
func (s *RedisStorage) ClearReports(ctx context.Context, before int64) error {
	return withContextError(ctx, func() error {
		keys, err := s.client.Keys(ctx, reportPrefix+"*").Result()
		if err != nil {
			return fmt.Errorf("failed to scan report keys: %v", err)
		}

		if len(keys) == 0 {
			return nil
		}

		pipe := s.client.Pipeline()
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			} else if err != nil {
				return fmt.Errorf("failed to get %s: %v", key, err)
			}

			var rep types.FactoryReport
			if err := json.Unmarshal(data, &rep); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %v", key, err)
			}

			if rep.GeneratedAt < before {
				pipe.Del(ctx, key)
			}
		}

		_, err = pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to execute pipeline for deletion: %v", err)
		}
		return nil
	})
}

// Close closes the Redis client connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
