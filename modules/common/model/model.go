package model

import "time"

// SourceKind - 후보 에셋의 입력 경로
type SourceKind string

const (
	SourceFile        SourceKind = "file"
	SourceURL         SourceKind = "url"
	SourceCSV         SourceKind = "csv"
	SourceProductPage SourceKind = "product-page"
	SourceCloud       SourceKind = "cloud"
	SourceDerived     SourceKind = "derived" // pdf-extract 등 처리 결과로 생긴 에셋
)

// Valid - 알려진 source인지
func (s SourceKind) Valid() bool {
	switch s {
	case SourceFile, SourceURL, SourceCSV, SourceProductPage, SourceCloud, SourceDerived:
		return true
	}
	return false
}

// RequiresCandidates - 파일 기반 배치는 후보가 최소 1개 있어야 시작 가능
func (s SourceKind) RequiresCandidates() bool {
	return s == SourceFile || s == ""
}

// AssetCandidate - 업로드 전 사용자 입력 1건
type AssetCandidate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Payload     []byte     `json:"-"`
	ContentType string     `json:"contentType,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	Source      SourceKind `json:"source"`
}

// HasPayload - 바이너리가 이미 준비됐는지 (URL/CSV 후보는 업로드 시 resolve)
func (c *AssetCandidate) HasPayload() bool {
	return len(c.Payload) > 0
}

// Resolve - 지연 로딩된 payload 채우기
func (c *AssetCandidate) Resolve(data []byte, contentType string) {
	c.Payload = data
	if contentType != "" {
		c.ContentType = contentType
	}
}

// UploadedAsset - 업로드 완료된 에셋 (server-assigned id)
type UploadedAsset struct {
	ID          string `json:"id"`
	CandidateID string `json:"candidateId,omitempty"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	StoragePath string `json:"storagePath,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// AssetRecord - assets 테이블 구조
type AssetRecord struct {
	ID           string     `json:"id,omitempty"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	StoragePath  string     `json:"storage_path"`
	URL          string     `json:"url"`
	ContentType  string     `json:"content_type"`
	SizeBytes    int64      `json:"size_bytes"`
	Width        *int       `json:"width"`
	Height       *int       `json:"height"`
	Source       string     `json:"source"`
	ProcessedURL *string    `json:"processed_url,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// BatchRecord - asset_batches 테이블 구조
type BatchRecord struct {
	BatchID           string   `json:"batch_id"`
	UserID            string   `json:"user_id"`
	Status            string   `json:"status"`
	TotalImages       int      `json:"total_images"`
	SuccessfullyFixed int      `json:"successfully_fixed"`
	FailedUploads     int      `json:"failed_uploads"`
	TotalSteps        int      `json:"total_steps"`
	AppliedOperations []string `json:"applied_operations"`
	QualityScore      *int     `json:"quality_score"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)
