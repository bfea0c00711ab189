package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "export_entitlement:"

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisFlagStore keeps flags in Redis as "1"/"0" strings
type RedisFlagStore struct {
	client     *redis.Client
	ownsClient bool
	logger     *zap.Logger
}

// NewRedisFlagStore connects to Redis and verifies the connection
func NewRedisFlagStore(cfg RedisConfig, logger *zap.Logger) (*RedisFlagStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisFlagStoreWithClient(client, logger)
	store.ownsClient = true
	return store, nil
}

// NewRedisFlagStoreWithClient wraps an existing client. The caller keeps ownership of it.
func NewRedisFlagStoreWithClient(client *redis.Client, logger *zap.Logger) *RedisFlagStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFlagStore{client: client, logger: logger}
}

func flagKey(subject string) string {
	return keyPrefix + subject
}

// GetFlag reads the subject's flag
func (s *RedisFlagStore) GetFlag(ctx context.Context, key string) (bool, bool, error) {
	val, err := s.client.Get(ctx, flagKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug("no entitlement flag", zap.String("subject", key))
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get entitlement flag: %w", err)
	}
	return val == "1", true, nil
}

// SetFlag writes the subject's flag
func (s *RedisFlagStore) SetFlag(ctx context.Context, key string, on bool, ttl time.Duration) error {
	val := "0"
	if on {
		val = "1"
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, flagKey(key), val, ttl).Err(); err != nil {
		s.logger.Error("Failed to set entitlement flag",
			zap.String("subject", key),
			zap.Error(err))
		return fmt.Errorf("failed to set entitlement flag: %w", err)
	}
	return nil
}

// Close closes the client when the store created it
func (s *RedisFlagStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
