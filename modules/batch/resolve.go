package batch

import (
	"math"

	"product-studio-server/modules/common/model"
)

// fallbackDimension - 원본 크기를 모를 때 percentage 기준값 (px)
const fallbackDimension = 1000

// ResolveRequest - 설정값을 에셋 1건의 ProcessingRequest로 변환
// auto-detect면 operation 목록은 비워서 보냄
func ResolveRequest(asset *model.UploadedAsset, userID string, cfg model.ProcessingConfiguration) model.ProcessingRequest {
	req := model.ProcessingRequest{
		AssetID:    asset.ID,
		UserID:     userID,
		Name:       asset.Name,
		SourceURL:  asset.URL,
		Width:      asset.Width,
		Height:     asset.Height,
		Options:    model.OptionSet{},
		AutoDetect: cfg.AutoDetect,
	}

	if cfg.AutoDetect {
		if cfg.CompressQuality > 0 {
			req.Options[model.OpCompress] = model.CompressOptions{Quality: cfg.CompressQuality}
		}
		return req
	}

	ops := make([]model.Operation, 0, len(cfg.Operations))
	for _, op := range cfg.Operations {
		switch op {
		case model.OpResize:
			dims, ok := resizeTarget(asset, cfg)
			if !ok {
				continue // original → resize 제거
			}
			req.Options[op] = dims
		case model.OpCompress:
			if cfg.CompressQuality > 0 {
				req.Options[op] = model.CompressOptions{Quality: cfg.CompressQuality}
			}
		case model.OpRecolor:
			req.Options[op] = model.RecolorOptions{Color: cfg.RecolorTarget}
		}
		ops = append(ops, op)
	}
	req.Operations = ops
	return req
}

// resizeTarget - resize 모드별 목표 크기. false면 resize를 보내지 않음
func resizeTarget(asset *model.UploadedAsset, cfg model.ProcessingConfiguration) (model.ResizeOptions, bool) {
	switch cfg.ResizeMode {
	case model.ResizePreset:
		return cfg.Preset, true
	case model.ResizeCustom:
		return cfg.Custom, true
	case model.ResizePercentage:
		return model.ResizeOptions{
			Width:  scale(asset.Width, cfg.Percentage),
			Height: scale(asset.Height, cfg.Percentage),
		}, true
	}
	return model.ResizeOptions{}, false
}

func scale(original, percentage int) int {
	if original <= 0 {
		original = fallbackDimension
	}
	v := int(math.Round(float64(original) * float64(percentage) / 100))
	if v < 1 {
		v = 1
	}
	return v
}
