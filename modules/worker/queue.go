package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/batch"
	redisClient "product-studio-server/modules/common/redis"
)

// lists - 큐에 필요한 Redis list 명령 (*redis.Client)
type lists interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Queue - batches:queue (LPUSH 적재, BRPOP 소비)
type Queue struct {
	rdb  lists
	name string
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, name: redisClient.BatchQueue}
}

// Enqueue - 작업을 JSON으로 적재하고 큐 길이 반환
func (q *Queue) Enqueue(ctx context.Context, job batch.Job) (int64, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return 0, fmt.Errorf("redis LPUSH failed: %w", err)
	}

	queueLen, _ := q.rdb.LLen(ctx, q.name).Result()
	log.Info().Str("batch_id", job.BatchID).Int64("position", queueLen).Msg("✅ [Enqueue] Batch enqueued")
	return queueLen, nil
}

// Len - 대기 중인 작업 수
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}

// pop - timeout 동안 대기, 작업이 없으면 (nil, nil)
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*batch.Job, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// result[0]은 큐 이름, result[1]이 payload
	var job batch.Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}
	return &job, nil
}
