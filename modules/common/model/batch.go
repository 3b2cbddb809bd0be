package model

import (
	"time"

	"product-studio-server/modules/common/apierr"
)

// ResizeMode - resize 목표 크기를 정하는 방식
type ResizeMode string

const (
	ResizeOriginal   ResizeMode = "original"
	ResizePreset     ResizeMode = "preset"
	ResizeCustom     ResizeMode = "custom"
	ResizePercentage ResizeMode = "percentage"
)

// ProcessingConfiguration - submit 시점에 고정되는 파이프라인 설정
type ProcessingConfiguration struct {
	Operations      []Operation   `json:"operations"`
	ResizeMode      ResizeMode    `json:"resizeMode,omitempty"`
	Preset          ResizeOptions `json:"preset"`
	Custom          ResizeOptions `json:"custom"`
	Percentage      int           `json:"percentage,omitempty"`
	CompressQuality int           `json:"compressQuality,omitempty"` // 0이면 q_auto
	RecolorTarget   string        `json:"recolorTarget,omitempty"`
	AutoDetect      bool          `json:"autoDetect"`
}

// Has - 요청된 operation인지
func (c ProcessingConfiguration) Has(op Operation) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Validate - phase 시작 전 설정 검증
func (c ProcessingConfiguration) Validate() error {
	for _, op := range c.Operations {
		if !op.Valid() {
			return apierr.Validation("config", "unknown operation %q", op)
		}
	}
	if !c.AutoDetect && len(c.Operations) == 0 {
		return apierr.Validation("config", "select at least one operation or enable auto-detect")
	}

	if c.Has(OpResize) && !c.AutoDetect {
		switch c.ResizeMode {
		case ResizeOriginal:
		case ResizePreset:
			if c.Preset.Width < 1 || c.Preset.Height < 1 {
				return apierr.Validation("config", "preset resize needs width and height")
			}
		case ResizeCustom:
			if c.Custom.Width < 1 || c.Custom.Height < 1 {
				return apierr.Validation("config", "custom resize needs width and height")
			}
		case ResizePercentage:
			if c.Percentage < 1 || c.Percentage > 1000 {
				return apierr.Validation("config", "resize percentage must be 1-1000, got %d", c.Percentage)
			}
		default:
			return apierr.Validation("config", "unknown resize mode %q", c.ResizeMode)
		}
	}

	if c.CompressQuality < 0 || c.CompressQuality > 100 {
		return apierr.Validation("config", "compress quality must be 0-100, got %d", c.CompressQuality)
	}
	if c.Has(OpRecolor) && !hexColor.MatchString(c.RecolorTarget) {
		return apierr.Validation("config", "recolor needs a hex target color, got %q", c.RecolorTarget)
	}
	return nil
}

// Phase - 오케스트레이터 상태
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseUploading   Phase = "uploading"
	PhaseProcessing  Phase = "processing"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
)

// Progress - phase별 진행률 (phase 시작 시 0부터)
type Progress struct {
	BatchID string `json:"batchId"`
	Phase   Phase  `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ProcessingOutcome - 에셋별 phase 2 결과
type ProcessingOutcome struct {
	AssetID   string       `json:"assetId"`
	Name      string       `json:"name"`
	FinalURL  string       `json:"finalUrl"`
	Success   bool         `json:"success"`
	Steps     []StepRecord `json:"steps"`
	Telemetry *Telemetry   `json:"telemetry,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// OutputImage - 배치 결과 이미지
type OutputImage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Processed bool   `json:"processed"`
}

// FailureRecord - 표시/디버깅용 실패 사유 (operation + message)
type FailureRecord struct {
	AssetID   string    `json:"assetId"`
	Name      string    `json:"name"`
	Operation Operation `json:"operation,omitempty"`
	Message   string    `json:"message"`
}

// UploadFailure - phase 1에서 제외된 후보
type UploadFailure struct {
	CandidateID string `json:"candidateId"`
	Name        string `json:"name"`
	Message     string `json:"message"`
}

// QualitySuggestions - 실행된 단계로부터 추론한 제안 플래그
type QualitySuggestions struct {
	BackgroundRemoval bool `json:"backgroundRemoval"`
	Cropping          bool `json:"cropping"`
	Retouch           bool `json:"retouch"`
	Compression       bool `json:"compression"`
}

// ComplianceCheck - 마켓플레이스 이미지 규격 체크
type ComplianceCheck struct {
	Provider  string `json:"provider"`
	Compliant bool   `json:"compliant"`
	Reason    string `json:"reason,omitempty"`
}

// QualityAnalysis - 배치 헤드라인 품질 분석
type QualityAnalysis struct {
	Score       int                `json:"score"`
	Scope       string             `json:"scope"`
	Confidence  Confidence         `json:"confidence"`
	Suggestions QualitySuggestions `json:"suggestions"`
	Compliance  []ComplianceCheck  `json:"compliance"`
}

// BatchResult - 배치 집계 결과
type BatchResult struct {
	BatchID           string              `json:"batchId"`
	Images            []OutputImage       `json:"images"`
	Total             int                 `json:"total"`
	SuccessfullyFixed int                 `json:"successfullyFixed"`
	TotalSteps        int                 `json:"totalSteps"`
	AppliedOperations []Operation         `json:"appliedOperations"`
	Failures          []FailureRecord     `json:"failures,omitempty"`
	UploadFailures    []UploadFailure     `json:"uploadFailures,omitempty"`
	Outcomes          []ProcessingOutcome `json:"outcomes"`
	Quality           *QualityAnalysis    `json:"quality,omitempty"`
	StartedAt         time.Time           `json:"startedAt"`
	CompletedAt       time.Time           `json:"completedAt"`
}

// Status - 배치 전체 상태 문자열 (DB/상태 조회용)
func (r *BatchResult) Status() string {
	switch {
	case r.Total == 0:
		return StatusFailed
	case r.SuccessfullyFixed == r.Total && len(r.UploadFailures) == 0:
		return StatusCompleted
	case r.SuccessfullyFixed == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
