// Package bootstrap assembles the storage layer and its optional
// collaborators from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/internal/storage"
	"github.com/mimir-go/internal/storage/elastic"
	"github.com/mimir-go/pkg/config"
	"github.com/mimir-go/pkg/events"
	"github.com/mimir-go/pkg/lock"
	"github.com/mimir-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Runtime holds the storage layer together with the clients it owns.
type Runtime struct {
	Storage  *storage.Storage
	Backend  *elastic.Backend
	Redis    *redis.Client
	EventBus events.EventBus
}

// New connects to Elasticsearch and, when enabled, to Redis for publication
// locks and to Kafka for container events.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	naming, err := container.NewNaming(cfg.Container.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid container root: %w", err)
	}

	backend, err := elastic.New(elastic.Config{
		Addresses:         cfg.Elasticsearch.Addresses,
		Username:          cfg.Elasticsearch.Username,
		Password:          cfg.Elasticsearch.Password,
		APIKey:            cfg.Elasticsearch.APIKey,
		BulkWorkers:       cfg.Bulk.Workers,
		BulkFlushBytes:    cfg.Bulk.FlushBytes,
		BulkFlushInterval: cfg.Bulk.FlushInterval,
		CircuitBreaker:    cfg.Elasticsearch.CircuitBreaker.ToCircuitBreakerConfig("elasticsearch"),
	}, log)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Backend: backend}
	opts := []storage.Option{
		storage.WithNaming(naming),
		storage.WithFieldPolicy(container.NewFieldPolicy(cfg.Container.UpdatableFields...)),
		storage.WithForceMerge(storage.ForceMergeConfig{
			Enabled:           cfg.ForceMerge.Enabled,
			MaxNumberSegments: cfg.ForceMerge.MaxNumberSegments,
		}),
		storage.WithLogger(log.Named("storage")),
	}

	if cfg.Publication.Lock.Enabled {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		opts = append(opts, storage.WithLocker(lock.NewRedisLocker(rt.Redis, cfg.Publication.Lock.ToLockConfig())))
	}

	if cfg.Kafka.Enabled {
		rt.EventBus, err = events.NewKafkaEventBus(cfg.Kafka.ToKafkaConfig())
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		opts = append(opts, storage.WithEventBus(rt.EventBus))
	}

	rt.Storage = storage.New(backend, opts...)
	return rt, nil
}

// Close releases the Redis and Kafka clients.
func (r *Runtime) Close() error {
	var errs []error
	if r.EventBus != nil {
		if err := r.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event bus: %w", err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
