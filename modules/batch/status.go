package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/model"
	redisClient "product-studio-server/modules/common/redis"
)

// StatusTTL - 상태 스냅샷 보관 기간
const StatusTTL = 24 * time.Hour

// ErrBatchNotFound - 스냅샷이 없거나 만료됨
var ErrBatchNotFound = errors.New("batch: not found")

// Snapshot - GET /api/batches/{batchId} 응답 + pub/sub 이벤트
type Snapshot struct {
	BatchID   string             `json:"batchId"`
	UserID    string             `json:"userId"`
	Source    model.SourceKind   `json:"source,omitempty"`
	Status    string             `json:"status"`
	Phase     model.Phase        `json:"phase"`
	Current   int                `json:"current"`
	Total     int                `json:"total"`
	Result    *model.BatchResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Pending - 큐에 들어간 직후 상태
func Pending(batchID, userID string, source model.SourceKind) Snapshot {
	return Snapshot{
		BatchID:   batchID,
		UserID:    userID,
		Source:    source,
		Status:    model.StatusPending,
		Phase:     model.PhaseIdle,
		UpdatedAt: time.Now(),
	}
}

// Apply - 진행률을 스냅샷에 반영
func (s Snapshot) Apply(p model.Progress) Snapshot {
	s.Phase = p.Phase
	s.Current = p.Current
	s.Total = p.Total
	s.Status = model.StatusProcessing
	s.UpdatedAt = time.Now()
	return s
}

// Complete - 최종 결과 스냅샷
func (s Snapshot) Complete(result *model.BatchResult) Snapshot {
	s.Phase = model.PhaseDone
	s.Current = result.Total
	s.Total = result.Total
	s.Status = result.Status()
	s.Result = result
	s.UpdatedAt = time.Now()
	return s
}

// Fail - 사전 검증 실패 등 배치 자체가 시작되지 못한 경우
func (s Snapshot) Fail(err error) Snapshot {
	s.Status = model.StatusFailed
	s.Error = err.Error()
	s.UpdatedAt = time.Now()
	return s
}

// StatusStore - Redis 상태 스냅샷 + batch-events 발행
type StatusStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusStore(rdb *redis.Client) *StatusStore {
	return &StatusStore{rdb: rdb, ttl: StatusTTL}
}

// Save - 스냅샷 저장 후 이벤트 발행
func (s *StatusStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal batch status: %w", err)
	}
	if err := s.rdb.Set(ctx, redisClient.BatchStatusKey(snap.BatchID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save batch status: %w", err)
	}
	if err := s.rdb.Publish(ctx, redisClient.BatchEvents, data).Err(); err != nil {
		log.Warn().Err(err).Str("batch_id", snap.BatchID).Msg("⚠️  [Status] Publish failed")
	}
	return nil
}

// Reserve - SETNX로 pending 스냅샷 선점, 다른 인스턴스가 같은 id를 쓰고 있으면 false
func (s *StatusStore) Reserve(ctx context.Context, snap Snapshot) (bool, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("failed to marshal batch status: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, redisClient.BatchStatusKey(snap.BatchID), data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve batch status: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.rdb.Publish(ctx, redisClient.BatchEvents, data).Err(); err != nil {
		log.Warn().Err(err).Str("batch_id", snap.BatchID).Msg("⚠️  [Status] Publish failed")
	}
	return true, nil
}

// Get - 스냅샷 조회
func (s *StatusStore) Get(ctx context.Context, batchID string) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, redisClient.BatchStatusKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch status: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode batch status: %w", err)
	}
	return &snap, nil
}

// Track - 진행률마다 스냅샷을 갱신하는 ProgressFunc
// phase 전환(Current==0)과 완료 시점만 쓰기 위해 중간 값은 건너뜀
func (s *StatusStore) Track(ctx context.Context, base Snapshot) ProgressFunc {
	return func(p model.Progress) {
		if p.Current != 0 && p.Current != p.Total && p.Current%5 != 0 {
			return
		}
		if err := s.Save(ctx, base.Apply(p)); err != nil {
			log.Warn().Err(err).Str("batch_id", p.BatchID).Msg("⚠️  [Status] Progress save failed")
		}
	}
}

// OnComplete - OnBatchComplete 리스너
func (s *StatusStore) OnComplete(ctx context.Context, b Completed) {
	snap := Pending(b.Result.BatchID, b.UserID, b.Source).Complete(b.Result)
	if err := s.Save(ctx, snap); err != nil {
		log.Error().Err(err).Str("batch_id", b.Result.BatchID).Msg("❌ [Status] Final save failed")
	}
}
