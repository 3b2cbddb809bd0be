package processing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/validate"
)

// Handler - 단건 처리 HTTP 엔드포인트
type Handler struct {
	processor Processor
	timeout   time.Duration
}

// processRequest - /api/process 요청
type processRequest struct {
	AssetID    string                     `json:"assetId" validate:"required"`
	UserID     string                     `json:"userId"`
	Name       string                     `json:"name"`
	SourceURL  string                     `json:"sourceUrl" validate:"required,url"`
	Width      int                        `json:"width" validate:"gte=0"`
	Height     int                        `json:"height" validate:"gte=0"`
	Operations []string                   `json:"operations" validate:"dive,operation"`
	Options    map[string]json.RawMessage `json:"options"`
	AutoDetect bool                       `json:"autoDetect"`
}

func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor, timeout: 10 * time.Minute}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/process", h.HandleProcess).Methods("POST", "OPTIONS")
	log.Info().Msg("✅ Process routes registered: /api/process")
}

func (r processRequest) toModel() (model.ProcessingRequest, error) {
	ops, err := model.ParseOperations(r.Operations)
	if err != nil {
		return model.ProcessingRequest{}, err
	}
	opts, err := model.DecodeOptions(r.Options)
	if err != nil {
		return model.ProcessingRequest{}, err
	}
	return model.ProcessingRequest{
		AssetID:    r.AssetID,
		UserID:     r.UserID,
		Name:       r.Name,
		SourceURL:  r.SourceURL,
		Width:      r.Width,
		Height:     r.Height,
		Operations: ops,
		Options:    opts,
		AutoDetect: r.AutoDetect,
	}, nil
}

// HandleProcess - POST /api/process
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var body processRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.Validation("process", "invalid request body: %v", err))
		return
	}
	if err := validate.Struct("process", body); err != nil {
		writeError(w, err)
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	log.Info().Str("asset_id", req.AssetID).Int("operations", len(req.Operations)).Bool("auto_detect", req.AutoDetect).Msg("📥 [Process] Request received")

	result, err := h.processor.Process(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("asset_id", req.AssetID).Msg("❌ [Process] Request failed")
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(ProcessResponse{
		Success:   true,
		URL:       result.URL,
		Telemetry: result.Telemetry,
	})
}

// StatusFor - 에러 종류별 HTTP 상태코드
func StatusFor(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return http.StatusUnprocessableEntity
	case apierr.KindNetwork, apierr.KindGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(StatusFor(err))
	json.NewEncoder(w).Encode(ProcessResponse{
		Success: false,
		Error:   err.Error(),
		Kind:    string(apierr.KindOf(err)),
	})
}
