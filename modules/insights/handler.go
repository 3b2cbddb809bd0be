package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/retry"
	"product-studio-server/modules/common/validate"
	"product-studio-server/modules/processing"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/copywriter"
	"product-studio-server/modules/providers/vision"
)

const (
	paletteSize   = 5
	minLabelScore = 0.7
)

// Handler - 마케팅 포스터용 팔레트 + 헤드라인 (큐 없이 즉시 응답)
type Handler struct {
	vision  processing.Analyzer
	writer  processing.Copywriter
	cdn     processing.Transformer
	timeout time.Duration
}

// PosterRequest - POST /api/insights/poster
type PosterRequest struct {
	ImageURL    string `json:"imageUrl" validate:"required,url"`
	ProductName string `json:"productName" validate:"max=120"`
	Render      bool   `json:"render"`
}

// PosterResponse - 포스터 인사이트
type PosterResponse struct {
	Success    bool              `json:"success"`
	Headline   string            `json:"headline,omitempty"`
	Callouts   []string          `json:"callouts,omitempty"`
	Palette    []string          `json:"palette,omitempty"`
	Labels     []string          `json:"labels,omitempty"`
	Confidence *model.Confidence `json:"confidence,omitempty"`
	PosterURL  string            `json:"posterUrl,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewHandler - writer가 nil이면 라벨 기반 템플릿 카피 사용, cdn이 nil이면 렌더링 생략
func NewHandler(analyzer processing.Analyzer, writer processing.Copywriter, transformer processing.Transformer) *Handler {
	if writer == nil {
		writer = copywriter.TemplateWriter{}
	}
	return &Handler{vision: analyzer, writer: writer, cdn: transformer, timeout: 90 * time.Second}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/insights/poster", h.HandlePoster).Methods("POST", "OPTIONS")
	log.Info().Msg("✅ Insights routes registered: /api/insights/poster")
}

// HandlePoster - vision 분석 → 카피 생성 → (선택) CDN 포스터 렌더링
func (h *Handler) HandlePoster(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req PosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.Validation("insights", "invalid request body: %v", err))
		return
	}
	if err := validate.Struct("insights", req); err != nil {
		writeError(w, err)
		return
	}
	if h.vision == nil {
		writeError(w, apierr.Validation("insights", "vision provider is not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.Poster(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("image_url", req.ImageURL).Msg("❌ [Insights] Poster failed")
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// Poster - 요청 1건 처리
func (h *Handler) Poster(ctx context.Context, req PosterRequest) (*PosterResponse, error) {
	analysis, err := retry.Do(ctx, retry.ProviderPolicy("vision"), func(ctx context.Context) (*vision.Analysis, error) {
		return h.vision.AnalyzeURL(ctx, req.ImageURL)
	})
	if err != nil {
		return nil, err
	}

	labels := analysis.LabelNames(minLabelScore)
	name := strings.TrimSpace(req.ProductName)
	if name == "" && len(labels) > 0 {
		name = labels[0]
	}

	text, err := retry.Do(ctx, retry.ProviderPolicy("copywriter"), func(ctx context.Context) (copywriter.Copy, error) {
		return h.writer.Write(ctx, name, labels)
	})
	if err != nil {
		return nil, err
	}

	conf := analysis.Confidence()
	resp := &PosterResponse{
		Success:    true,
		Headline:   text.Headline,
		Callouts:   text.Callouts,
		Palette:    analysis.Palette(paletteSize),
		Labels:     labels,
		Confidence: &conf,
	}

	if req.Render && h.cdn != nil {
		u, err := h.cdn.Transform(ctx, req.ImageURL, posterTransformation(resp.Palette, text))
		if err != nil {
			// 렌더링 실패는 인사이트 응답을 막지 않음
			log.Warn().Err(err).Msg("⚠️  [Insights] Poster render failed")
		} else {
			resp.PosterURL = u
		}
	}

	log.Info().Str("headline", resp.Headline).Int("palette", len(resp.Palette)).Msg("✅ [Insights] Poster ready")
	return resp, nil
}

// posterTransformation - 대표색 배경 패딩 + 카피 오버레이
func posterTransformation(palette []string, text copywriter.Copy) cdn.Transformation {
	bg := "b_white"
	if len(palette) > 0 {
		bg = "b_rgb:" + strings.TrimPrefix(palette[0], "#")
	}
	t := cdn.Transformation{"c_pad,w_1080,h_1350," + bg}
	return append(t, cdn.TextOverlay(text.Lines())...)
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(processing.StatusFor(err))
	json.NewEncoder(w).Encode(PosterResponse{Success: false, Error: err.Error()})
}
