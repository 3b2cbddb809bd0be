package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"product-studio-server/modules/common/config"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/obs"
	"product-studio-server/modules/common/retry"
	"product-studio-server/modules/common/runner"
)

var (
	// ErrUnauthenticated - 사용자 없이 배치 제출
	ErrUnauthenticated = errors.New("batch: no authenticated user")
	// ErrNoCandidates - 파일 배치인데 후보가 없음
	ErrNoCandidates = errors.New("batch: no candidates to upload")
)

// Uploader - phase 1 업로드 (upload.Uploader)
type Uploader interface {
	Upload(ctx context.Context, userID string, c *model.AssetCandidate) (*model.UploadedAsset, error)
}

// Processor - phase 2 처리 (processing.Engine)
type Processor interface {
	Process(ctx context.Context, req model.ProcessingRequest) (*model.ProcessResult, error)
}

// Submission - SubmitBatch 입력 (제출 시점에 고정)
type Submission struct {
	BatchID    string
	UserID     string
	Source     model.SourceKind
	Candidates []*model.AssetCandidate
	Config     model.ProcessingConfiguration
}

// Check - phase 시작 전 배치 단위 검증
func (s Submission) Check() error {
	if s.UserID == "" {
		return ErrUnauthenticated
	}
	if s.Source.RequiresCandidates() && len(s.Candidates) == 0 {
		return ErrNoCandidates
	}
	return s.Config.Validate()
}

// ProgressFunc - phase 진행률 콜백
type ProgressFunc func(model.Progress)

// Completed - OnBatchComplete 리스너에 전달되는 배치 결과
type Completed struct {
	UserID string
	Source model.SourceKind
	Result *model.BatchResult
}

// Listener - 배치 완료 구독자
type Listener func(ctx context.Context, b Completed)

// Orchestrator - 업로드 → 처리 → 집계 2단계 파이프라인
type Orchestrator struct {
	uploader  Uploader
	processor Processor

	uploadConcurrency  int
	processConcurrency int
	uploadPolicy       retry.Policy
	processPolicy      retry.Policy
	quality            QualitySettings

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int

	batchIDs IDClock

	log zerolog.Logger
	now func() time.Time
}

// NewOrchestrator - 설정값으로 동시성/재시도 정책 구성
func NewOrchestrator(cfg *config.Config, uploader Uploader, processor Processor) *Orchestrator {
	l := log.With().Str("component", "batch").Logger()
	return &Orchestrator{
		uploader:           uploader,
		processor:          processor,
		uploadConcurrency:  cfg.UploadConcurrency,
		processConcurrency: cfg.ProcessConcurrency,
		uploadPolicy:       retry.UploadPolicy(cfg).WithLogger(l),
		processPolicy:      retry.ProcessPolicy(cfg).WithLogger(l),
		quality: QualitySettings{
			Scope:     cfg.QualityScope,
			Threshold: cfg.ComplianceThreshold,
		},
		listeners: map[int]Listener{},
		log:       l,
		now:       time.Now,
	}
}

// OnBatchComplete - 완료 리스너 등록, 반환된 함수로 해제
func (o *Orchestrator) OnBatchComplete(l Listener) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// SubmitBatch - 사전 검증 후 phase 1/2 실행, 집계 결과 반환
// 에셋별 실패는 결과에 담기고 에러로 반환되지 않음
func (o *Orchestrator) SubmitBatch(ctx context.Context, sub Submission, onProgress ProgressFunc) (*model.BatchResult, error) {
	if err := sub.Check(); err != nil {
		return nil, err
	}

	started := o.now()
	if sub.BatchID == "" {
		sub.BatchID = o.batchIDs.Next(started)
	}
	if onProgress == nil {
		onProgress = func(model.Progress) {}
	}

	ctx, span := obs.Tracer("batch").Start(ctx, "batch.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", sub.BatchID),
		attribute.String("batch.source", string(sub.Source)),
		attribute.Int("batch.candidates", len(sub.Candidates)),
	)

	l := o.log.With().Str("batch_id", sub.BatchID).Logger()
	l.Info().
		Int("candidates", len(sub.Candidates)).
		Str("source", string(sub.Source)).
		Bool("auto_detect", sub.Config.AutoDetect).
		Msg("🚀 [Batch] Starting")

	assets, uploadFailures := o.uploadPhase(ctx, sub, onProgress)
	outcomes := o.processPhase(ctx, sub, assets, onProgress)

	onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseAggregating, Current: 0, Total: len(outcomes)})
	result := Aggregate(sub.BatchID, outcomes, uploadFailures, o.quality)
	result.StartedAt = started
	result.CompletedAt = o.now()
	onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseDone, Current: len(outcomes), Total: len(outcomes)})

	span.SetAttributes(
		attribute.Int("batch.total", result.Total),
		attribute.Int("batch.fixed", result.SuccessfullyFixed),
	)
	if result.Status() == model.StatusFailed {
		span.SetStatus(codes.Error, "no asset processed")
	}

	l.Info().
		Int("total", result.Total).
		Int("fixed", result.SuccessfullyFixed).
		Int("upload_failures", len(uploadFailures)).
		Int("steps", result.TotalSteps).
		Dur("elapsed", result.CompletedAt.Sub(started)).
		Msg("✅ [Batch] Completed")

	o.notify(ctx, Completed{UserID: sub.UserID, Source: sub.Source, Result: result})
	return result, nil
}

type uploadAttempt struct {
	candidate *model.AssetCandidate
	asset     *model.UploadedAsset
	err       error
}

// uploadPhase - 모든 업로드가 끝날 때까지 반환하지 않음 (phase barrier)
func (o *Orchestrator) uploadPhase(ctx context.Context, sub Submission, onProgress ProgressFunc) ([]*model.UploadedAsset, []model.UploadFailure) {
	start := time.Now()
	defer obs.ObservePhase(string(model.PhaseUploading), start)

	ctx, span := obs.Tracer("batch").Start(ctx, "batch.upload")
	defer span.End()

	total := len(sub.Candidates)
	onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseUploading, Current: 0, Total: total})

	worker := func(ctx context.Context, c *model.AssetCandidate) uploadAttempt {
		asset, err := retry.Do(ctx, o.uploadPolicy, func(ctx context.Context) (*model.UploadedAsset, error) {
			return o.uploader.Upload(ctx, sub.UserID, c)
		})
		return uploadAttempt{candidate: c, asset: asset, err: err}
	}
	progress := func(completed, total int) {
		onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseUploading, Current: completed, Total: total})
	}

	attempts := runner.Run(ctx, sub.Candidates, o.uploadConcurrency, worker, progress)

	assets := make([]*model.UploadedAsset, 0, len(attempts))
	var failures []model.UploadFailure
	for _, a := range attempts {
		obs.RecordUpload(a.err == nil && a.asset != nil)
		if a.err != nil || a.asset == nil {
			err := a.err
			if err == nil {
				err = fmt.Errorf("uploader returned no asset")
			}
			o.log.Warn().
				Err(err).
				Str("batch_id", sub.BatchID).
				Str("candidate", a.candidate.Name).
				Msg("⚠️  [Batch] Upload failed, excluded from processing")
			failures = append(failures, model.UploadFailure{
				CandidateID: a.candidate.ID,
				Name:        a.candidate.Name,
				Message:     err.Error(),
			})
			continue
		}
		assets = append(assets, a.asset)
	}

	span.SetAttributes(attribute.Int("upload.ok", len(assets)), attribute.Int("upload.failed", len(failures)))
	return assets, failures
}

func (o *Orchestrator) processPhase(ctx context.Context, sub Submission, assets []*model.UploadedAsset, onProgress ProgressFunc) []model.ProcessingOutcome {
	start := time.Now()
	defer obs.ObservePhase(string(model.PhaseProcessing), start)

	ctx, span := obs.Tracer("batch").Start(ctx, "batch.process")
	defer span.End()

	onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseProcessing, Current: 0, Total: len(assets)})

	worker := func(ctx context.Context, asset *model.UploadedAsset) model.ProcessingOutcome {
		return o.processAsset(ctx, sub, asset)
	}
	progress := func(completed, total int) {
		onProgress(model.Progress{BatchID: sub.BatchID, Phase: model.PhaseProcessing, Current: completed, Total: total})
	}

	outcomes := runner.Run(ctx, assets, o.processConcurrency, worker, progress)
	for _, out := range outcomes {
		obs.RecordOutcome(out.Success)
		for _, step := range out.Steps {
			obs.RecordStep(string(step.Operation), string(step.Status))
		}
	}
	return outcomes
}

// processAsset - 실패해도 finalUrl은 원본 URL로 채움
func (o *Orchestrator) processAsset(ctx context.Context, sub Submission, asset *model.UploadedAsset) model.ProcessingOutcome {
	outcome := model.ProcessingOutcome{
		AssetID:  asset.ID,
		Name:     asset.Name,
		FinalURL: asset.URL,
		Steps:    []model.StepRecord{},
	}

	req := ResolveRequest(asset, sub.UserID, sub.Config)
	if err := req.Validate(); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	res, err := retry.Do(ctx, o.processPolicy, func(ctx context.Context) (*model.ProcessResult, error) {
		return o.processor.Process(ctx, req)
	})
	if err != nil || res == nil {
		if err == nil {
			err = fmt.Errorf("processor returned no result")
		}
		o.log.Warn().
			Err(err).
			Str("batch_id", sub.BatchID).
			Str("asset_id", asset.ID).
			Msg("⚠️  [Batch] Processing failed, keeping original URL")
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	if res.URL != "" {
		outcome.FinalURL = res.URL
	}
	if res.Telemetry != nil {
		outcome.Telemetry = res.Telemetry
		outcome.Steps = res.Telemetry.Steps
	}
	return outcome
}

// notify - 리스너마다 별도 goroutine (완료를 기다리지 않음)
func (o *Orchestrator) notify(ctx context.Context, b Completed) {
	o.mu.RLock()
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.RUnlock()

	// 요청 컨텍스트가 끝나도 리스너는 계속 실행
	detached := context.WithoutCancel(ctx)
	for _, l := range listeners {
		go func(l Listener) {
			defer func() {
				if r := recover(); r != nil {
					o.log.Error().Interface("panic", r).Str("batch_id", b.Result.BatchID).Msg("❌ [Batch] Listener panicked")
				}
			}()
			l(detached, b)
		}(l)
	}
}
