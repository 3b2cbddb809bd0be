package batch

import (
	"context"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/obs"
)

// BatchRecords - 배치/에셋 레코드 저장소 (database.Client)
type BatchRecords interface {
	SaveBatch(ctx context.Context, rec model.BatchRecord) error
	UpdateProcessedURL(ctx context.Context, assetID, processedURL string) error
}

// RecordListener - asset_batches 행 저장 + 처리 URL 반영
func RecordListener(records BatchRecords) Listener {
	return func(ctx context.Context, b Completed) {
		rec := ToRecord(b)
		if err := records.SaveBatch(ctx, rec); err != nil {
			log.Error().Err(err).Str("batch_id", rec.BatchID).Msg("❌ [Batch] Failed to save batch record")
		}

		for _, o := range b.Result.Outcomes {
			if !o.Success || o.FinalURL == "" {
				continue
			}
			if err := records.UpdateProcessedURL(ctx, o.AssetID, o.FinalURL); err != nil {
				log.Warn().Err(err).Str("asset_id", o.AssetID).Msg("⚠️  [Batch] Failed to update processed url")
			}
		}
	}
}

// ToRecord - BatchResult → asset_batches 행
func ToRecord(b Completed) model.BatchRecord {
	r := b.Result
	ops := make([]string, 0, len(r.AppliedOperations))
	for _, op := range r.AppliedOperations {
		ops = append(ops, string(op))
	}
	rec := model.BatchRecord{
		BatchID:           r.BatchID,
		UserID:            b.UserID,
		Status:            r.Status(),
		TotalImages:       r.Total,
		SuccessfullyFixed: r.SuccessfullyFixed,
		FailedUploads:     len(r.UploadFailures),
		TotalSteps:        r.TotalSteps,
		AppliedOperations: ops,
	}
	if r.Quality != nil {
		score := r.Quality.Score
		rec.QualityScore = &score
	}
	return rec
}

// MetricsListener - 배치 상태별 카운터
func MetricsListener(ctx context.Context, b Completed) {
	obs.RecordBatch(string(b.Source), b.Result.Status())
}
