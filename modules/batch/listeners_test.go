package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/model"
)

type fakeRecords struct {
	batches   []model.BatchRecord
	processed map[string]string
}

func (f *fakeRecords) SaveBatch(_ context.Context, rec model.BatchRecord) error {
	f.batches = append(f.batches, rec)
	return nil
}

func (f *fakeRecords) UpdateProcessedURL(_ context.Context, assetID, url string) error {
	if assetID == "a-missing" {
		return errors.New("not found")
	}
	if f.processed == nil {
		f.processed = map[string]string{}
	}
	f.processed[assetID] = url
	return nil
}

func TestRecordListener(t *testing.T) {
	res := Aggregate("batch-7", []model.ProcessingOutcome{
		outcome("a1", &model.Confidence{BgClean: 0.8, Shadow: 0.4, Crop: 0.2}, steps(model.OpCompress)),
		outcome("a-missing", nil, steps(model.OpCrop)),
		{AssetID: "a3", FinalURL: "https://cdn.test/a3.png", Error: "boom"},
	}, nil, defaultQuality)

	records := &fakeRecords{}
	RecordListener(records)(context.Background(), Completed{UserID: "user-1", Source: model.SourceFile, Result: res})

	require.Len(t, records.batches, 1)
	rec := records.batches[0]
	assert.Equal(t, "batch-7", rec.BatchID)
	assert.Equal(t, model.StatusPartial, rec.Status)
	assert.Equal(t, 3, rec.TotalImages)
	assert.Equal(t, 2, rec.SuccessfullyFixed)
	assert.Equal(t, []string{"compress", "crop"}, rec.AppliedOperations)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 53, *rec.QualityScore)

	assert.Equal(t, map[string]string{"a1": "https://cdn.test/processed/a1"}, records.processed)
}

func TestSnapshotTransitions(t *testing.T) {
	snap := Pending("batch-1", "user-1", model.SourceCSV)
	assert.Equal(t, model.StatusPending, snap.Status)
	assert.Equal(t, model.PhaseIdle, snap.Phase)

	snap = snap.Apply(model.Progress{Phase: model.PhaseProcessing, Current: 2, Total: 4})
	assert.Equal(t, model.StatusProcessing, snap.Status)
	assert.Equal(t, 2, snap.Current)

	done := snap.Complete(&model.BatchResult{BatchID: "batch-1", Total: 4, SuccessfullyFixed: 4})
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, model.PhaseDone, done.Phase)
	assert.Equal(t, 4, done.Current)

	failed := Pending("batch-2", "user-1", model.SourceURL).Fail(ErrUnauthenticated)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, ErrUnauthenticated.Error(), failed.Error)
}
