package upload

import (
	"context"
	"fmt"

	"product-studio-server/modules/common/model"
)

// AssetRecords - 에셋 메타데이터 저장소 (database.Client)
type AssetRecords interface {
	CreateAsset(ctx context.Context, rec model.AssetRecord) (*model.AssetRecord, error)
}

// Fetcher - URL 후보의 바이너리를 가져옴
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

// UploadError - 실패한 후보와 원인
type UploadError struct {
	Candidate *model.AssetCandidate
	Err       error
}

func (e *UploadError) Error() string {
	name := "<nil>"
	if e.Candidate != nil {
		name = e.Candidate.Name
	}
	return fmt.Sprintf("upload %s: %v", name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
