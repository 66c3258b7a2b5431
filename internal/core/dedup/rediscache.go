package dedup

import (
	"context"
	"fmt"
	"strconv"

	"recipe-importer/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
)

const idSetKey = "importer:external_ids"

// RedisIDSet 跨場次的 external id 集合：已匯入的 id 在 TTL 視窗內
// 直接判為 exact，省去重建索引後的整輪比對。記憶體索引仍是最終依據。
type RedisIDSet struct {
	client *redis.Client
	cfg    config.DedupConfig
}

// NewRedisIDSet 創建 external id 快取；未啟用時回傳 nil（呼叫端需容忍 nil）
func NewRedisIDSet(cfg config.DedupConfig) (*RedisIDSet, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIDSet{
		client: client,
		cfg:    cfg,
	}, nil
}

// Contains 檢查 external id 是否已匯入過
func (s *RedisIDSet) Contains(ctx context.Context, externalID int64) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	return s.client.SIsMember(ctx, idSetKey, strconv.FormatInt(externalID, 10)).Result()
}

// Add 記錄新匯入的 external id，並刷新集合 TTL
func (s *RedisIDSet) Add(ctx context.Context, externalID int64) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.SAdd(ctx, idSetKey, strconv.FormatInt(externalID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to add external id: %w", err)
	}
	if s.cfg.RedisTTL > 0 {
		if err := s.client.Expire(ctx, idSetKey, s.cfg.RedisTTL).Err(); err != nil {
			return fmt.Errorf("failed to refresh ttl: %w", err)
		}
	}
	return nil
}

// Close 關閉連線
func (s *RedisIDSet) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
