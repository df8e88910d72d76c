package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the keys written by RedisDetector.
const DefaultKeyPrefix = "iso20022:dup:"

// redisClient is the subset of the go-redis client used by RedisDetector.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisConfig configures a RedisDetector.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	Window    time.Duration
	// Client overrides the client built from Address.
	Client redis.UniversalClient
}

// RedisDetector shares duplicate detection between processes through Redis.
type RedisDetector struct {
	client redisClient
	prefix string
	window time.Duration
}

// NewRedisDetector creates a detector backed by Redis. It does not contact
// the server; connection problems surface from Seen.
func NewRedisDetector(cfg RedisConfig) (*RedisDetector, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("reliability: redis window must be positive, got %v", cfg.Window)
	}

	var client redisClient = cfg.Client
	if cfg.Client == nil {
		if cfg.Address == "" {
			return nil, fmt.Errorf("reliability: redis address is required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	return newRedisDetector(client, cfg.KeyPrefix, cfg.Window), nil
}

func newRedisDetector(client redisClient, prefix string, window time.Duration) *RedisDetector {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisDetector{client: client, prefix: prefix, window: window}
}

// Key returns the Redis key used for messageID.
func (d *RedisDetector) Key(messageID string) string {
	return d.prefix + Fingerprint([]byte(messageID))
}

// Seen sets the identifier key if absent. An existing key means the
// identifier was received within the window.
func (d *RedisDetector) Seen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, ErrEmptyID
	}
	created, err := d.client.SetNX(ctx, d.Key(messageID), time.Now().UTC().Format(time.RFC3339Nano), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis duplicate check: %w", err)
	}
	return !created, nil
}

// Close closes the Redis client.
func (d *RedisDetector) Close() error {
	return d.client.Close()
}
