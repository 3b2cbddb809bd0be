package processing

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/vision"
)

// auto-detect 임계값
const (
	autoBgThreshold      = 0.3
	autoCropThreshold    = 0.3
	autoRetouchThreshold = 0.3
)

// pipelineOrder - 원본을 바꾸는 작업 먼저, 압축은 마지막, 파생물은 그 뒤
var pipelineOrder = map[model.Operation]int{
	model.OpPDFExtract:        0,
	model.OpBackgroundRemoval: 1,
	model.OpCrop:              2,
	model.OpRetouch:           3,
	model.OpRecolor:           4,
	model.OpLifestyle:         5,
	model.OpResize:            6,
	model.OpCompress:          7,
	model.OpColorAnalysis:     8,
	model.OpSwatch:            9,
	model.OpLineDiagram:       10,
	model.OpInfographic:       11,
	model.Op3DModel:           12,
	model.OpConfigurator:      13,
	model.Op360Spin:           14,
}

// Engine - 프로세스 내 처리 백엔드
type Engine struct {
	p         Providers
	extracted *extractedCache
}

func NewEngine(p Providers) *Engine {
	return &Engine{p: p, extracted: newExtractedCache()}
}

// job - 요청 1건의 체인 상태
type job struct {
	req       model.ProcessingRequest
	base      string             // 마지막으로 실체화된 URL (원본 또는 저장된 결과)
	chain     cdn.Transformation // base 위에 누적된 CDN 변환
	current   string
	telemetry *model.Telemetry

	analysis    *vision.Analysis
	analysisErr error
	analyzed    bool
}

// Process - operation을 순서대로 적용
// 재시도 가능한 단계 에러는 호출 전체를 중단, 그 외 단계 실패는 기록 후 계속
// 재시도 가능한 에러로 끝나면 이미 등록한 PDF 추출 에셋을 다음 호출에서 재사용
func (e *Engine) Process(ctx context.Context, req model.ProcessingRequest) (*model.ProcessResult, error) {
	res, err := e.process(ctx, req)
	if err == nil || !apierr.IsRetryable(err) || ctx.Err() != nil {
		e.extracted.forget(extractedKey(req))
	}
	return res, err
}

func (e *Engine) process(ctx context.Context, req model.ProcessingRequest) (*model.ProcessResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	j := &job{
		req:       req,
		base:      req.SourceURL,
		current:   req.SourceURL,
		telemetry: &model.Telemetry{Steps: []model.StepRecord{}},
	}

	// 신뢰도는 vision이 있을 때만 채움
	if e.p.Vision != nil {
		a, err := e.analyze(ctx, j)
		switch {
		case err == nil:
			conf := a.Confidence()
			j.telemetry.Confidence = &conf
			j.telemetry.Labels = a.LabelNames(0.7)
		case apierr.IsRetryable(err):
			return nil, err
		default:
			log.Warn().Err(err).Str("asset_id", req.AssetID).Msg("⚠️  [Process] Vision analysis failed")
		}
	}

	ops := append([]model.Operation(nil), req.Operations...)
	if req.AutoDetect {
		ops = SelectOperations(j.telemetry.Confidence)
		j.telemetry.AutoDetected = true
	}
	sort.SliceStable(ops, func(a, b int) bool { return pipelineOrder[ops[a]] < pipelineOrder[ops[b]] })

	failed := 0
	var firstErr error
	for _, op := range ops {
		stepURL, err := e.runStep(ctx, j, op)
		if err != nil {
			if apierr.IsRetryable(err) || ctx.Err() != nil {
				return nil, err
			}
			failed++
			if firstErr == nil {
				firstErr = err
			}
			log.Warn().Err(err).Str("asset_id", req.AssetID).Str("operation", string(op)).Msg("⚠️  [Process] Step failed")
			j.telemetry.Steps = append(j.telemetry.Steps, model.StepRecord{Operation: op, Status: model.StepFailed, Error: err.Error()})
			continue
		}
		j.telemetry.Steps = append(j.telemetry.Steps, model.StepRecord{Operation: op, Status: model.StepSuccess, URL: stepURL})
	}

	if len(ops) > 0 && failed == len(ops) {
		return nil, apierr.Validation("process", "all %d operations failed for asset %s: %v", failed, req.AssetID, firstErr)
	}

	log.Info().
		Str("asset_id", req.AssetID).
		Int("steps", len(ops)).
		Int("failed", failed).
		Msg("✅ [Process] Asset processed")

	return &model.ProcessResult{URL: j.current, Telemetry: j.telemetry}, nil
}

// SelectOperations - 신뢰도 기반 자동 선택 (신뢰도가 없으면 압축만)
func SelectOperations(conf *model.Confidence) []model.Operation {
	var ops []model.Operation
	if conf != nil {
		if conf.BgClean > autoBgThreshold {
			ops = append(ops, model.OpBackgroundRemoval)
		}
		if conf.Crop > autoCropThreshold {
			ops = append(ops, model.OpCrop)
		}
		if conf.Shadow > autoRetouchThreshold {
			ops = append(ops, model.OpRetouch)
		}
	}
	return append(ops, model.OpCompress)
}

func (e *Engine) analyze(ctx context.Context, j *job) (*vision.Analysis, error) {
	if j.analyzed {
		return j.analysis, j.analysisErr
	}
	if e.p.Vision == nil {
		return nil, notConfigured("vision")
	}
	// 재시도는 Process 호출 단위 정책이 담당
	j.analysis, j.analysisErr = e.p.Vision.AnalyzeURL(ctx, j.req.SourceURL)
	if j.analysisErr == nil || !apierr.IsRetryable(j.analysisErr) {
		j.analyzed = true
	}
	return j.analysis, j.analysisErr
}

func notConfigured(provider string) error {
	return apierr.Validation("process", "%s provider is not configured", provider)
}

// transform - 현재 체인에 변환을 이어 붙여 검증된 URL 반환 (commit이면 체인 확정)
func (e *Engine) transform(ctx context.Context, j *job, t cdn.Transformation, commit bool) (string, error) {
	if e.p.CDN == nil {
		return "", notConfigured("cdn")
	}
	next := append(append(cdn.Transformation{}, j.chain...), t...)
	u, err := e.p.CDN.Transform(ctx, j.base, next)
	if err != nil {
		return "", err
	}
	if commit {
		j.chain = next
		j.current = u
	}
	return u, nil
}

// materialize - 저장된 결과를 새 base로 (이전 CDN 체인은 결과에 이미 반영됨)
func (j *job) materialize(u string) {
	j.base = u
	j.chain = nil
	j.current = u
}

func (j *job) artifact(op model.Operation, u string) {
	if j.telemetry.Artifacts == nil {
		j.telemetry.Artifacts = map[model.Operation]string{}
	}
	j.telemetry.Artifacts[op] = u
}

func (e *Engine) runStep(ctx context.Context, j *job, op model.Operation) (string, error) {
	switch op {
	case model.OpResize:
		r, _ := j.req.Options.Resize()
		return e.transform(ctx, j, cdn.Resize(r.Width, r.Height), true)
	case model.OpCrop:
		return e.transform(ctx, j, cdn.Crop(), true)
	case model.OpCompress:
		c, _ := j.req.Options.Compress()
		return e.transform(ctx, j, cdn.Compress(c.Quality), true)
	case model.OpRetouch:
		return e.transform(ctx, j, cdn.Retouch(), true)
	case model.OpLifestyle:
		return e.transform(ctx, j, cdn.Lifestyle(), true)
	case model.OpRecolor:
		r, _ := j.req.Options.Recolor()
		return e.transform(ctx, j, cdn.Recolor(r.Color), true)
	case model.OpBackgroundRemoval:
		return e.removeBackground(ctx, j)
	case model.OpColorAnalysis:
		return "", e.colorAnalysis(ctx, j)
	case model.OpSwatch:
		return e.swatch(ctx, j)
	case model.OpLineDiagram:
		u, err := e.transform(ctx, j, cdn.LineDiagram(), false)
		if err == nil {
			j.artifact(op, u)
		}
		return u, err
	case model.OpInfographic:
		return e.infographic(ctx, j)
	case model.Op3DModel, model.OpConfigurator, model.Op360Spin:
		return e.reconstruct(ctx, j, op)
	case model.OpPDFExtract:
		return "", e.extractPDF(ctx, j)
	}
	return "", apierr.Validation("process", "unsupported operation %q", op)
}
