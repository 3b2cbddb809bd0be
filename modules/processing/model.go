package processing

import (
	"context"

	"product-studio-server/modules/common/model"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/copywriter"
	"product-studio-server/modules/providers/pdfextract"
	"product-studio-server/modules/providers/reconstruct"
	"product-studio-server/modules/providers/vision"
)

// Processor - 에셋 하나를 요청된 operation으로 처리하는 백엔드
type Processor interface {
	Process(ctx context.Context, req model.ProcessingRequest) (*model.ProcessResult, error)
}

type Transformer interface {
	Transform(ctx context.Context, sourceURL string, t cdn.Transformation) (string, error)
}

type BackgroundRemover interface {
	Remove(ctx context.Context, imageURL string) ([]byte, error)
}

type Analyzer interface {
	AnalyzeURL(ctx context.Context, imageURL string) (*vision.Analysis, error)
}

type Copywriter interface {
	Write(ctx context.Context, productName string, labels []string) (copywriter.Copy, error)
}

type Reconstructor interface {
	Generate(ctx context.Context, imageURL string, mode reconstruct.Mode) (string, error)
}

type DocumentExtractor interface {
	Extract(ctx context.Context, name string, pdf []byte) ([]pdfextract.Image, error)
}

// ObjectWriter - 처리 결과 바이너리 저장 (storage.ObjectStore)
type ObjectWriter interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// AssetSaver - 파생 에셋 등록 (upload.Uploader)
type AssetSaver interface {
	UploadBytes(ctx context.Context, userID, name string, data []byte, contentType string, source model.SourceKind) (*model.UploadedAsset, error)
}

// Downloader - 원본 바이너리 다운로드 (upload.HTTPFetcher)
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Providers - 설정된 provider만 채움 (nil이면 해당 operation은 실패 처리)
type Providers struct {
	CDN         Transformer
	BgRemoval   BackgroundRemover
	Vision      Analyzer
	Copy        Copywriter
	Reconstruct Reconstructor
	PDF         DocumentExtractor
	Objects     ObjectWriter
	Assets      AssetSaver
	Fetcher     Downloader
}

// ProcessResponse - /api/process 응답
type ProcessResponse struct {
	Success   bool             `json:"success"`
	URL       string           `json:"url,omitempty"`
	Telemetry *model.Telemetry `json:"telemetry,omitempty"`
	Error     string           `json:"error,omitempty"`
	Kind      string           `json:"kind,omitempty"`
}
