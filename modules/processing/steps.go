package processing

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/storage"
	"product-studio-server/modules/common/utils"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/reconstruct"
)

const (
	paletteSize    = 6
	swatchCellSize = 128
	webpQuality    = 90
)

// removeBackground - 배경 제거 → WebP → processed/{asset}/bg-remove.webp
func (e *Engine) removeBackground(ctx context.Context, j *job) (string, error) {
	if e.p.BgRemoval == nil {
		return "", notConfigured("background removal")
	}
	if e.p.Objects == nil {
		return "", notConfigured("object store")
	}

	data, err := e.p.BgRemoval.Remove(ctx, j.current)
	if err != nil {
		return "", err
	}
	webpData, err := utils.ConvertToWebP(data, webpQuality)
	if err != nil {
		return "", apierr.Validation("bg-remove", "provider returned undecodable image: %v", err)
	}

	u, err := e.p.Objects.Put(ctx, storage.ProcessedPath(j.req.AssetID, string(model.OpBackgroundRemoval), "webp"), webpData, "image/webp")
	if err != nil {
		return "", err
	}
	j.materialize(u)
	return u, nil
}

// colorAnalysis - vision dominant color → Telemetry.Palette
func (e *Engine) colorAnalysis(ctx context.Context, j *job) error {
	a, err := e.analyze(ctx, j)
	if err != nil {
		return err
	}
	palette := a.Palette(paletteSize)
	if len(palette) == 0 {
		return apierr.Validation("color-analysis", "no dominant colors detected")
	}
	j.telemetry.Palette = palette
	return nil
}

// swatch - 팔레트를 grid 이미지로 렌더링해서 저장
func (e *Engine) swatch(ctx context.Context, j *job) (string, error) {
	if e.p.Objects == nil {
		return "", notConfigured("object store")
	}
	if len(j.telemetry.Palette) == 0 {
		if err := e.colorAnalysis(ctx, j); err != nil {
			return "", err
		}
	}

	img, err := utils.RenderSwatch(j.telemetry.Palette, swatchCellSize)
	if err != nil {
		return "", apierr.Validation("swatch", "%v", err)
	}
	data, err := utils.EncodeWebP(img, webpQuality)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, "swatch", err)
	}

	u, err := e.p.Objects.Put(ctx, storage.ProcessedPath(j.req.AssetID, string(model.OpSwatch), "webp"), data, "image/webp")
	if err != nil {
		return "", err
	}
	j.artifact(model.OpSwatch, u)
	return u, nil
}

// infographic - 라벨 → 카피 → CDN 텍스트 오버레이
func (e *Engine) infographic(ctx context.Context, j *job) (string, error) {
	if e.p.Copy == nil {
		return "", notConfigured("copywriter")
	}

	var labels []string
	if a, err := e.analyze(ctx, j); err == nil {
		labels = a.LabelNames(0.7)
	} else if apierr.IsRetryable(err) {
		return "", err
	}

	text, err := e.p.Copy.Write(ctx, j.req.Name, labels)
	if err != nil {
		return "", err
	}

	t := append(cdn.Transformation{"c_pad,w_1200,h_1500,b_white"}, cdn.TextOverlay(text.Lines())...)
	u, err := e.transform(ctx, j, t, false)
	if err != nil {
		return "", err
	}
	j.artifact(model.OpInfographic, u)
	return u, nil
}

// reconstruct - 3D 모델 / configurator / 360 spin
func (e *Engine) reconstruct(ctx context.Context, j *job, op model.Operation) (string, error) {
	if e.p.Reconstruct == nil {
		return "", notConfigured("3D reconstruction")
	}

	mode := reconstruct.ModeModel
	switch op {
	case model.OpConfigurator:
		mode = reconstruct.ModeConfigurator
	case model.Op360Spin:
		mode = reconstruct.ModeSpin
	}

	u, err := e.p.Reconstruct.Generate(ctx, j.current, mode)
	if err != nil {
		return "", err
	}
	j.artifact(op, u)
	return u, nil
}

// extractPDF - PDF 안의 이미지를 새 에셋으로 등록
func (e *Engine) extractPDF(ctx context.Context, j *job) error {
	switch {
	case e.p.PDF == nil:
		return notConfigured("PDF extraction")
	case e.p.Fetcher == nil || e.p.Assets == nil:
		return notConfigured("asset upload")
	case j.req.UserID == "":
		return apierr.Validation("pdf-extract", "user id is required to register extracted images")
	}

	key := extractedKey(j.req)
	saved, complete := e.extracted.get(key)
	if complete {
		j.telemetry.Extracted = append(j.telemetry.Extracted, saved...)
		log.Info().Str("asset_id", j.req.AssetID).Int("images", len(saved)).Msg("📄 [Process] PDF images reused from previous attempt")
		return nil
	}

	data, contentType, err := e.p.Fetcher.Fetch(ctx, j.req.SourceURL)
	if err != nil {
		return err
	}
	if contentType != "application/pdf" {
		return apierr.Validation("pdf-extract", "source is %s, not a PDF", contentType)
	}

	images, err := e.p.PDF.Extract(ctx, documentName(j.req), data)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return apierr.Validation("pdf-extract", "no images found in document")
	}

	for i, img := range images {
		if i < len(saved) {
			j.telemetry.Extracted = append(j.telemetry.Extracted, saved[i])
			continue
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d.%s", strings.TrimSuffix(documentName(j.req), ".pdf"), i+1, utils.ExtensionFor(img.ContentType))
		}
		asset, err := e.p.Assets.UploadBytes(ctx, j.req.UserID, name, img.Data, img.ContentType, model.SourceDerived)
		if err != nil {
			return err
		}
		e.extracted.add(key, *asset)
		j.telemetry.Extracted = append(j.telemetry.Extracted, *asset)
	}
	e.extracted.markComplete(key)

	log.Info().Str("asset_id", j.req.AssetID).Int("images", len(images)).Msg("📄 [Process] PDF images extracted")
	return nil
}

func documentName(req model.ProcessingRequest) string {
	if req.Name != "" {
		return req.Name
	}
	if base := path.Base(strings.SplitN(req.SourceURL, "?", 2)[0]); base != "." && base != "/" {
		return base
	}
	return "document.pdf"
}
