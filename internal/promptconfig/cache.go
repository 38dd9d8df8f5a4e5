package promptconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/models"
)

const (
	// DefaultTTL is how long resolved configurations stay cached.
	DefaultTTL = 30 * time.Minute
	// KeyPrefix namespaces cache keys.
	KeyPrefix = "promptconfig:"

	defaultLocalCacheSize = 1000
	defaultLocalCacheTTL  = time.Minute
)

// ErrCacheDisabled is returned by cache reads when redis is unavailable.
var ErrCacheDisabled = errors.New("caching disabled")

// CacheOption customises the underlying go-redis/cache options.
type CacheOption func(*rediscache.Options)

// WithLocalCache adds an in-process TinyLFU tier in front of redis. Entries
// in that tier live for ttl regardless of the redis TTL.
func WithLocalCache(size int, ttl time.Duration) CacheOption {
	return func(o *rediscache.Options) {
		o.LocalCache = rediscache.NewTinyLFU(size, ttl)
	}
}

// Cache stores values in redis through go-redis/cache. A Cache whose redis
// was unreachable at construction is disabled and every read misses.
type Cache struct {
	client  *redis.Client
	cache   *rediscache.Cache
	log     *logrus.Logger
	enabled bool
}

// NewCache connects to redis. When the ping fails the returned cache is
// usable but disabled, and the error says so.
func NewCache(cfg config.RedisConfig, log *logrus.Logger) (*Cache, error) {
	if log == nil {
		log = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, prompt config caching disabled")
		return &Cache{client: client, log: log}, fmt.Errorf("redis unavailable, %w: %v", ErrCacheDisabled, err)
	}

	var opts []CacheOption
	if cfg.LocalCacheSize >= 0 {
		size, ttl := cfg.LocalCacheSize, cfg.LocalCacheTTL
		if size == 0 {
			size = defaultLocalCacheSize
		}
		if ttl <= 0 {
			ttl = defaultLocalCacheTTL
		}
		opts = append(opts, WithLocalCache(size, ttl))
	}

	log.WithField("address", cfg.Address()).Info("Connected to redis")
	return NewCacheWithClient(client, log, opts...), nil
}

// NewCacheWithClient wraps an existing client. Without options only redis
// is used.
func NewCacheWithClient(client *redis.Client, log *logrus.Logger, opts ...CacheOption) *Cache {
	if log == nil {
		log = logrus.New()
	}
	c := &Cache{client: client, log: log}
	if client == nil {
		return c
	}

	options := &rediscache.Options{Redis: client, StatsEnabled: true}
	for _, opt := range opts {
		opt(options)
	}
	c.cache = rediscache.New(options)
	c.enabled = true
	return c
}

// IsEnabled reports whether reads and writes reach redis.
func (c *Cache) IsEnabled() bool {
	return c != nil && c.enabled
}

// Get decodes the value stored under key into target. A missing key
// returns go-redis/cache's ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, target any) error {
	if !c.IsEnabled() {
		return ErrCacheDisabled
	}
	return c.cache.Get(ctx, KeyPrefix+key, target)
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.cache.Set(&rediscache.Item{
		Ctx:   ctx,
		Key:   KeyPrefix + key,
		Value: value,
		TTL:   ttl,
	}); err != nil {
		return fmt.Errorf("failed to set value in redis: %w", err)
	}
	return nil
}

// Invalidate deletes keys from redis and the local tier.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.IsEnabled() {
		return nil
	}

	var errs []error
	for _, key := range keys {
		if err := c.cache.Delete(ctx, KeyPrefix+key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete key %s from cache: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns hit and miss counters, nil when disabled.
func (c *Cache) Stats() *rediscache.Stats {
	if !c.IsEnabled() {
		return nil
	}
	return c.cache.Stats()
}

// Ping checks redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the redis client.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// With returns the cached value for key. On a miss it calls fallback and
// stores the result for ttl. Cache failures never fail the lookup.
func With[T any](
	ctx context.Context,
	cache *Cache,
	key string,
	ttl time.Duration,
	fallback func(context.Context) (*T, error),
) (*T, error) {
	if cache.IsEnabled() {
		var target T
		err := cache.Get(ctx, key, &target)
		if err == nil {
			return &target, nil
		}
		if !errors.Is(err, rediscache.ErrCacheMiss) {
			cache.log.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
	}

	retrieved, err := fallback(ctx)
	if err != nil {
		return nil, err
	}

	if cache.IsEnabled() {
		if err := cache.Set(ctx, key, retrieved, ttl); err != nil {
			cache.log.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return retrieved, nil
}

// CachedRepository is a cache-aside decorator over a Repository.
type CachedRepository struct {
	next  Repository
	cache *Cache
	ttl   time.Duration
}

// NewCachedRepository wraps next. A zero ttl means DefaultTTL.
func NewCachedRepository(next Repository, cache *Cache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedRepository{next: next, cache: cache, ttl: ttl}
}

func (r *CachedRepository) FindDefault(ctx context.Context, appID string) (*models.PromptConfig, error) {
	return With(ctx, r.cache, CacheKey(appID, nil), r.ttl, func(ctx context.Context) (*models.PromptConfig, error) {
		return r.next.FindDefault(ctx, appID)
	})
}

func (r *CachedRepository) FindByID(ctx context.Context, appID, configID string) (*models.PromptConfig, error) {
	return With(ctx, r.cache, CacheKey(appID, &configID), r.ttl, func(ctx context.Context) (*models.PromptConfig, error) {
		return r.next.FindByID(ctx, appID, configID)
	})
}

// Invalidate drops the cached default of appID and the given configs.
func (r *CachedRepository) Invalidate(ctx context.Context, appID string, configIDs ...string) error {
	keys := []string{CacheKey(appID, nil)}
	for i := range configIDs {
		keys = append(keys, CacheKey(appID, &configIDs[i]))
	}
	return r.cache.Invalidate(ctx, keys...)
}

// InvalidateIndex drops every application and config named in any of the
// indexes, as returned by FileRepository.Index. Passing the index from before
// and after a reload covers removed entries too.
func (r *CachedRepository) InvalidateIndex(ctx context.Context, indexes ...map[string][]string) error {
	union := make(map[string]map[string]struct{})
	for _, index := range indexes {
		for appID, configIDs := range index {
			ids, ok := union[appID]
			if !ok {
				ids = make(map[string]struct{})
				union[appID] = ids
			}
			for _, id := range configIDs {
				ids[id] = struct{}{}
			}
		}
	}

	var errs []error
	for appID, ids := range union {
		configIDs := make([]string, 0, len(ids))
		for id := range ids {
			configIDs = append(configIDs, id)
		}
		if err := r.Invalidate(ctx, appID, configIDs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
