package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/config"
)

const (
	// BatchQueue - URL/CSV 배치 작업 큐 (LPUSH / BRPOP)
	BatchQueue = "batches:queue"
	// BatchEvents - 배치 진행/완료 이벤트 pub/sub 채널
	BatchEvents = "batch-events"
)

// BatchStatusKey - 배치 상태 스냅샷 키
func BatchStatusKey(batchID string) string {
	return "batch:" + batchID + ":status"
}

// Connect - Redis 연결 생성
func Connect(cfg *config.Config) (*redis.Client, error) {
	log.Info().Str("addr", cfg.GetRedisAddr()).Msg("🔌 Connecting to Redis")

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Msg("✅ Redis connected successfully")
	return rdb, nil
}
