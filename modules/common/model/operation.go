package model

import (
	"encoding/json"
	"regexp"

	"product-studio-server/modules/common/apierr"
)

// Operation - 에셋 하나에 적용하는 개선 작업
type Operation string

const (
	OpResize            Operation = "resize"
	OpBackgroundRemoval Operation = "bg-remove"
	OpRetouch           Operation = "retouch"
	OpCrop              Operation = "crop"
	OpCompress          Operation = "compress"
	OpLifestyle         Operation = "lifestyle"
	OpInfographic       Operation = "infographic"
	OpLineDiagram       Operation = "line-diagram"
	OpSwatch            Operation = "swatch"
	OpColorAnalysis     Operation = "color-analysis"
	Op3DModel           Operation = "3d-model"
	Op360Spin           Operation = "360-spin"
	OpRecolor           Operation = "recolor"
	OpConfigurator      Operation = "configurator"
	OpPDFExtract        Operation = "pdf-extract"
)

var AllOperations = []Operation{
	OpResize, OpBackgroundRemoval, OpRetouch, OpCrop, OpCompress,
	OpLifestyle, OpInfographic, OpLineDiagram, OpSwatch, OpColorAnalysis,
	Op3DModel, Op360Spin, OpRecolor, OpConfigurator, OpPDFExtract,
}

func (o Operation) Valid() bool {
	for _, known := range AllOperations {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOperations - 문자열 목록을 Operation으로 변환
func ParseOperations(names []string) ([]Operation, error) {
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		op := Operation(name)
		if !op.Valid() {
			return nil, apierr.Validation("operations", "unknown operation %q", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Options - operation별 옵션 (tagged union)
// ResizeOptions | CompressOptions | RecolorOptions | NoOptions
type Options interface {
	optionsFor() Operation
}

type ResizeOptions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type CompressOptions struct {
	Quality int `json:"quality"`
}

type RecolorOptions struct {
	Color string `json:"color"`
}

type NoOptions struct{}

func (ResizeOptions) optionsFor() Operation   { return OpResize }
func (CompressOptions) optionsFor() Operation { return OpCompress }
func (RecolorOptions) optionsFor() Operation  { return OpRecolor }
func (NoOptions) optionsFor() Operation       { return "" }

// OptionSet - operation을 키로 하는 옵션 묶음
type OptionSet map[Operation]Options

// Resize - resize 옵션 조회
func (s OptionSet) Resize() (ResizeOptions, bool) {
	o, ok := s[OpResize].(ResizeOptions)
	return o, ok
}

// Compress - compress 옵션 조회
func (s OptionSet) Compress() (CompressOptions, bool) {
	o, ok := s[OpCompress].(CompressOptions)
	return o, ok
}

// Recolor - recolor 옵션 조회
func (s OptionSet) Recolor() (RecolorOptions, bool) {
	o, ok := s[OpRecolor].(RecolorOptions)
	return o, ok
}

var hexColor = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// validateOptions - operation과 옵션 형태가 맞는지 검사
func validateOptions(op Operation, opt Options) error {
	switch op {
	case OpResize:
		r, ok := opt.(ResizeOptions)
		if !ok {
			return apierr.Validation("options", "resize requires {width, height}, got %T", opt)
		}
		if r.Width < 1 || r.Height < 1 || r.Width > 10000 || r.Height > 10000 {
			return apierr.Validation("options", "resize dimensions out of range: %dx%d", r.Width, r.Height)
		}
	case OpCompress:
		if opt == nil {
			return nil // q_auto
		}
		c, ok := opt.(CompressOptions)
		if !ok {
			return apierr.Validation("options", "compress requires {quality}, got %T", opt)
		}
		if c.Quality < 1 || c.Quality > 100 {
			return apierr.Validation("options", "compress quality must be 1-100, got %d", c.Quality)
		}
	case OpRecolor:
		r, ok := opt.(RecolorOptions)
		if !ok {
			return apierr.Validation("options", "recolor requires {color}, got %T", opt)
		}
		if !hexColor.MatchString(r.Color) {
			return apierr.Validation("options", "recolor color must be a hex RGB value, got %q", r.Color)
		}
	case OpBackgroundRemoval, OpRetouch, OpCrop, OpLifestyle, OpInfographic,
		OpLineDiagram, OpSwatch, OpColorAnalysis, Op3DModel, Op360Spin,
		OpConfigurator, OpPDFExtract:
		if opt == nil {
			return nil
		}
		if _, ok := opt.(NoOptions); !ok {
			return apierr.Validation("options", "%s takes no options, got %T", op, opt)
		}
	default:
		return apierr.Validation("options", "unknown operation %q", op)
	}
	return nil
}

// DecodeOptions - {"resize": {...}, "compress": {...}} 형태의 JSON을 OptionSet으로 변환
func DecodeOptions(raw map[string]json.RawMessage) (OptionSet, error) {
	set := make(OptionSet, len(raw))
	for key, msg := range raw {
		op := Operation(key)
		var (
			opt Options
			err error
		)
		switch op {
		case OpResize:
			var r ResizeOptions
			err = json.Unmarshal(msg, &r)
			opt = r
		case OpCompress:
			var c CompressOptions
			err = json.Unmarshal(msg, &c)
			opt = c
		case OpRecolor:
			var r RecolorOptions
			err = json.Unmarshal(msg, &r)
			opt = r
		default:
			if !op.Valid() {
				return nil, apierr.Validation("options", "options for unknown operation %q", key)
			}
			opt = NoOptions{}
		}
		if err != nil {
			return nil, apierr.Validation("options", "invalid %s options: %v", key, err)
		}
		set[op] = opt
	}
	return set, nil
}

// ProcessingRequest - 에셋 하나에 대한 처리 요청
type ProcessingRequest struct {
	AssetID    string      `json:"assetId"`
	UserID     string      `json:"userId,omitempty"`
	Name       string      `json:"name,omitempty"`
	SourceURL  string      `json:"sourceUrl"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	Operations []Operation `json:"operations"`
	Options    OptionSet   `json:"options,omitempty"`
	AutoDetect bool        `json:"autoDetect"`
}

// Validate - dispatch 전 요청 형태 검증
func (r ProcessingRequest) Validate() error {
	if r.AssetID == "" {
		return apierr.Validation("process", "asset id is required")
	}
	if r.SourceURL == "" {
		return apierr.Validation("process", "source url is required for asset %s", r.AssetID)
	}
	if r.AutoDetect {
		// auto-detect면 operations는 무시되고 빈 목록으로 전송됨
		if len(r.Operations) > 0 {
			return apierr.Validation("process", "operations must be empty when autoDetect is set")
		}
	} else if len(r.Operations) == 0 {
		return apierr.Validation("process", "no operations requested for asset %s", r.AssetID)
	}

	seen := make(map[Operation]bool, len(r.Operations))
	for _, op := range r.Operations {
		if !op.Valid() {
			return apierr.Validation("process", "unknown operation %q", op)
		}
		if seen[op] {
			return apierr.Validation("process", "operation %s requested twice", op)
		}
		seen[op] = true
		if err := validateOptions(op, r.Options[op]); err != nil {
			return err
		}
	}

	for op, opt := range r.Options {
		if opt == nil {
			continue
		}
		if want := opt.optionsFor(); want != "" && want != op {
			return apierr.Validation("process", "options of %s supplied under %s", want, op)
		}
		if !r.AutoDetect && !seen[op] {
			return apierr.Validation("process", "options supplied for %s which was not requested", op)
		}
		if r.AutoDetect {
			if err := validateOptions(op, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

// StepStatus - 처리 단계 결과
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepRecord - 실행된 operation 1건
type StepRecord struct {
	Operation Operation  `json:"operation"`
	Status    StepStatus `json:"status"`
	URL       string     `json:"url,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Confidence - 이슈 감지 신뢰도 (0~1, 높을수록 문제가 있음)
type Confidence struct {
	BgClean float64 `json:"bg_clean"`
	Shadow  float64 `json:"shadow"`
	Crop    float64 `json:"crop"`
}

// Average - 세 항목 평균
func (c Confidence) Average() float64 {
	return (c.BgClean + c.Shadow + c.Crop) / 3
}

// Telemetry - 처리 백엔드가 돌려주는 단계/신뢰도 정보
type Telemetry struct {
	Steps        []StepRecord         `json:"steps"`
	Confidence   *Confidence          `json:"confidence,omitempty"`
	Palette      []string             `json:"palette,omitempty"`
	Labels       []string             `json:"labels,omitempty"`
	Artifacts    map[Operation]string `json:"artifacts,omitempty"`
	Extracted    []UploadedAsset      `json:"extracted,omitempty"`
	AutoDetected bool                 `json:"autoDetected,omitempty"`
}

// ProcessResult - AssetProcessor 결과
type ProcessResult struct {
	URL       string     `json:"url"`
	Telemetry *Telemetry `json:"telemetry,omitempty"`
}
