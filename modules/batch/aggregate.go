package batch

import (
	"math"
	"sort"

	"product-studio-server/modules/common/model"
)

const (
	// QualityScopeFirst - 첫 번째 outcome의 telemetry만 사용
	QualityScopeFirst = "first"
	// QualityScopeBatch - telemetry가 있는 모든 outcome의 평균
	QualityScopeBatch = "batch"
)

// QualitySettings - 품질 분석 범위와 compliance 임계값
type QualitySettings struct {
	Scope     string
	Threshold float64
}

// Aggregate - outcome 목록을 BatchResult로 집계
func Aggregate(batchID string, outcomes []model.ProcessingOutcome, uploadFailures []model.UploadFailure, q QualitySettings) *model.BatchResult {
	result := &model.BatchResult{
		BatchID:        batchID,
		Images:         make([]model.OutputImage, 0, len(outcomes)),
		Total:          len(outcomes),
		UploadFailures: uploadFailures,
		Outcomes:       outcomes,
	}

	applied := map[model.Operation]bool{}
	for _, o := range outcomes {
		result.Images = append(result.Images, model.OutputImage{
			ID:        o.AssetID,
			Name:      o.Name,
			URL:       o.FinalURL,
			Processed: o.Success,
		})

		if !o.Success {
			result.Failures = append(result.Failures, model.FailureRecord{
				AssetID: o.AssetID,
				Name:    o.Name,
				Message: o.Error,
			})
			continue
		}
		result.SuccessfullyFixed++

		for _, step := range o.Steps {
			if step.Status != model.StepSuccess {
				result.Failures = append(result.Failures, model.FailureRecord{
					AssetID:   o.AssetID,
					Name:      o.Name,
					Operation: step.Operation,
					Message:   step.Error,
				})
				continue
			}
			result.TotalSteps++
			applied[step.Operation] = true
		}

		// pdf-extract로 생긴 에셋은 처리되지 않은 새 이미지로 노출
		if o.Telemetry != nil {
			for _, ex := range o.Telemetry.Extracted {
				result.Images = append(result.Images, model.OutputImage{
					ID:   ex.ID,
					Name: ex.Name,
					URL:  ex.URL,
				})
			}
		}
	}

	result.AppliedOperations = make([]model.Operation, 0, len(applied))
	for op := range applied {
		result.AppliedOperations = append(result.AppliedOperations, op)
	}
	sort.Slice(result.AppliedOperations, func(i, j int) bool {
		return result.AppliedOperations[i] < result.AppliedOperations[j]
	})

	result.Quality = AnalyzeQuality(outcomes, q)
	return result
}

// AnalyzeQuality - 첫 outcome(또는 배치 평균)의 confidence로 품질 분석
// 첫 outcome에 telemetry가 없으면 nil
func AnalyzeQuality(outcomes []model.ProcessingOutcome, q QualitySettings) *model.QualityAnalysis {
	if len(outcomes) == 0 {
		return nil
	}

	var (
		conf     model.Confidence
		scope    = QualityScopeFirst
		included []model.ProcessingOutcome
	)

	if q.Scope == QualityScopeBatch {
		scope = QualityScopeBatch
		for _, o := range outcomes {
			if o.Telemetry != nil && o.Telemetry.Confidence != nil {
				included = append(included, o)
			}
		}
		if len(included) == 0 {
			return nil
		}
		for _, o := range included {
			c := o.Telemetry.Confidence
			conf.BgClean += c.BgClean
			conf.Shadow += c.Shadow
			conf.Crop += c.Crop
		}
		n := float64(len(included))
		conf = model.Confidence{BgClean: conf.BgClean / n, Shadow: conf.Shadow / n, Crop: conf.Crop / n}
	} else {
		first := outcomes[0]
		if first.Telemetry == nil || first.Telemetry.Confidence == nil {
			return nil
		}
		conf = *first.Telemetry.Confidence
		included = outcomes[:1]
	}

	return &model.QualityAnalysis{
		Score:       QualityScore(conf),
		Scope:       scope,
		Confidence:  conf,
		Suggestions: suggestionsFrom(included),
		Compliance:  complianceFor(conf, q.Threshold),
	}
}

// QualityScore - round(100 - 100*avg) 를 0~100으로 제한
func QualityScore(c model.Confidence) int {
	score := int(math.Round(100 - 100*c.Average()))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func suggestionsFrom(outcomes []model.ProcessingOutcome) model.QualitySuggestions {
	var s model.QualitySuggestions
	for _, o := range outcomes {
		for _, step := range o.Telemetry.Steps {
			if step.Status != model.StepSuccess {
				continue
			}
			switch step.Operation {
			case model.OpBackgroundRemoval:
				s.BackgroundRemoval = true
			case model.OpCrop:
				s.Cropping = true
			case model.OpRetouch:
				s.Retouch = true
			case model.OpCompress:
				s.Compression = true
			}
		}
	}
	return s
}

func complianceFor(c model.Confidence, threshold float64) []model.ComplianceCheck {
	amazon := model.ComplianceCheck{Provider: "amazon", Compliant: c.BgClean <= threshold}
	if !amazon.Compliant {
		amazon.Reason = "background is not pure white"
	}
	return []model.ComplianceCheck{
		amazon,
		{Provider: "shopify", Compliant: true},
	}
}
