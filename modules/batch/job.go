package batch

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/collect"
	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
)

// Job - Redis 큐에 들어가는 URL/CSV/상품 페이지 배치
// 후보 수집은 worker에서 수행
type Job struct {
	BatchID     string                        `json:"batchId"`
	UserID      string                        `json:"userId"`
	Source      model.SourceKind              `json:"source"`
	URLs        []string                      `json:"urls,omitempty"`
	CSV         string                        `json:"csv,omitempty"`
	Spreadsheet []byte                        `json:"spreadsheet,omitempty"`
	PageURL     string                        `json:"pageUrl,omitempty"`
	Config      model.ProcessingConfiguration `json:"config"`
	EnqueuedAt  time.Time                     `json:"enqueuedAt"`
}

// Enqueuer - 큐 적재 (worker.Queue)
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (position int64, err error)
}

// Collect - source에 맞는 collector로 후보 목록 생성
func (j Job) Collect(ctx context.Context, client *http.Client) ([]*model.AssetCandidate, error) {
	const op = "batch.collect"

	switch j.Source {
	case model.SourceURL:
		return collect.ParseURLList(strings.Join(j.URLs, "\n")), nil
	case model.SourceCloud:
		candidates := collect.ParseURLList(strings.Join(j.URLs, "\n"))
		for _, c := range candidates {
			c.Source = model.SourceCloud
		}
		return candidates, nil
	case model.SourceCSV:
		if len(j.Spreadsheet) > 0 {
			return collect.ParseSpreadsheet(bytes.NewReader(j.Spreadsheet))
		}
		return collect.ParseCSV(strings.NewReader(j.CSV))
	case model.SourceProductPage:
		return collect.FromProductPage(ctx, client, j.PageURL)
	}
	return nil, apierr.Validation(op, "source %q cannot be queued", j.Source)
}

// Submitter - 배치 실행 (Orchestrator)
type Submitter interface {
	SubmitBatch(ctx context.Context, sub Submission, onProgress ProgressFunc) (*model.BatchResult, error)
}

// StatusTracker - 상태 스냅샷 저장소 (StatusStore)
type StatusTracker interface {
	Save(ctx context.Context, snap Snapshot) error
	// Reserve - batchId가 비어 있을 때만 저장 (false면 이미 사용 중)
	Reserve(ctx context.Context, snap Snapshot) (bool, error)
	Get(ctx context.Context, batchID string) (*Snapshot, error)
	Track(ctx context.Context, base Snapshot) ProgressFunc
}

// ProgressSink - 사용자별 실시간 진행률 전달 (realtime.Hub)
type ProgressSink interface {
	SendProgress(userID string, p model.Progress)
}

// Executor - 상태 기록과 실시간 전달을 묶어 배치 실행 (handler, worker 공용)
type Executor struct {
	Submitter Submitter
	Status    StatusTracker
	Sink      ProgressSink
}

// Run - 실패 시 failed 스냅샷 저장. 완료 스냅샷은 OnBatchComplete 리스너가 저장
func (e *Executor) Run(ctx context.Context, sub Submission) (*model.BatchResult, error) {
	base := Pending(sub.BatchID, sub.UserID, sub.Source)

	var track ProgressFunc
	if e.Status != nil {
		track = e.Status.Track(ctx, base)
	}
	progress := func(p model.Progress) {
		if track != nil {
			track(p)
		}
		if e.Sink != nil {
			e.Sink.SendProgress(sub.UserID, p)
		}
	}

	result, err := e.Submitter.SubmitBatch(ctx, sub, progress)
	if err != nil {
		log.Error().Err(err).Str("batch_id", sub.BatchID).Msg("❌ [Batch] Rejected before start")
		e.fail(ctx, base, err)
		return nil, err
	}
	return result, nil
}

// RunJob - 큐 작업의 후보를 수집한 뒤 실행
func (e *Executor) RunJob(ctx context.Context, job Job, client *http.Client) (*model.BatchResult, error) {
	candidates, err := job.Collect(ctx, client)
	if err != nil {
		e.fail(ctx, Pending(job.BatchID, job.UserID, job.Source), err)
		return nil, err
	}
	return e.Run(ctx, Submission{
		BatchID:    job.BatchID,
		UserID:     job.UserID,
		Source:     job.Source,
		Candidates: candidates,
		Config:     job.Config,
	})
}

func (e *Executor) fail(ctx context.Context, base Snapshot, err error) {
	if e.Status == nil {
		return
	}
	if serr := e.Status.Save(ctx, base.Fail(err)); serr != nil {
		log.Warn().Err(serr).Str("batch_id", base.BatchID).Msg("⚠️  [Status] Failed to save failure")
	}
}
