package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "recipe-studio:apikey:"

// RedisKeyStore 以 Redis 保存 API key，多個實例可共用
type RedisKeyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisKeyStore 連線 Redis 並建立 KeyStore
func NewRedisKeyStore(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisKeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisKeyStore{client: client, ttl: ttl}, nil
}

func (s *RedisKeyStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// SetAPIKey 設定工作階段的 API key
func (s *RedisKeyStore) SetAPIKey(ctx context.Context, sessionID, apiKey string) error {
	if err := s.client.Set(ctx, s.key(sessionID), apiKey, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set api key: %w", err)
	}
	return nil
}

// GetAPIKey 取得工作階段的 API key
func (s *RedisKeyStore) GetAPIKey(ctx context.Context, sessionID string) (string, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get api key: %w", err)
	}
	return val, nil
}

// DeleteAPIKey 刪除工作階段的 API key
func (s *RedisKeyStore) DeleteAPIKey(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// HasAPIKey 檢查工作階段是否已選擇 API key
func (s *RedisKeyStore) HasAPIKey(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check api key: %w", err)
	}
	return n > 0, nil
}

// Ping 健康檢查
func (s *RedisKeyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 關閉連線
func (s *RedisKeyStore) Close() error {
	return s.client.Close()
}
