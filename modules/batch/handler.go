package batch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/collect"
	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/fallback"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/validate"
	"product-studio-server/modules/processing"
)

const (
	maxMultipartMemory = 32 << 20
	maxReserveAttempts = 5
)

// Handler - 배치 제출/조회 HTTP 엔드포인트
type Handler struct {
	exec     *Executor
	queue    Enqueuer
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	now      func() time.Time
	batchIDs IDClock
}

// configRequest - ProcessingConfiguration 입력
type configRequest struct {
	Operations      []string            `json:"operations" validate:"dive,operation"`
	ResizeMode      string              `json:"resizeMode" validate:"omitempty,oneof=original preset custom percentage"`
	Preset          model.ResizeOptions `json:"preset"`
	Custom          model.ResizeOptions `json:"custom"`
	Percentage      int                 `json:"percentage" validate:"gte=0,lte=1000"`
	CompressQuality int                 `json:"compressQuality" validate:"gte=0,lte=100"`
	RecolorTarget   string              `json:"recolorTarget" validate:"omitempty,hexcolor|len=6"`
	AutoDetect      bool                `json:"autoDetect"`
}

// batchRequest - JSON 배치 요청 (URL / CSV / 스프레드시트 / 상품 페이지)
type batchRequest struct {
	UserID      string        `json:"userId"`
	Source      string        `json:"source" validate:"required,source,ne=file,ne=derived"`
	URLs        []string      `json:"urls" validate:"omitempty,dive,url"`
	CSV         string        `json:"csv"`
	Spreadsheet []byte        `json:"spreadsheet"`
	PageURL     string        `json:"pageUrl" validate:"omitempty,url"`
	Config      configRequest `json:"config"`
}

// SubmitResponse - 202 응답
type SubmitResponse struct {
	Success       bool   `json:"success"`
	BatchID       string `json:"batchId,omitempty"`
	Status        string `json:"status,omitempty"`
	Queued        bool   `json:"queued,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
	Error         string `json:"error,omitempty"`
	Kind          string `json:"kind,omitempty"`
}

// ResultResponse - 동기 실행 응답
type ResultResponse struct {
	Success bool               `json:"success"`
	Result  *model.BatchResult `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// NewHandler - queue가 nil이면 모든 배치를 프로세스 내에서 실행
func NewHandler(exec *Executor, queue Enqueuer, maxBytes int64) *Handler {
	return &Handler{
		exec:     exec,
		queue:    queue,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: maxBytes,
		timeout:  30 * time.Minute,
		now:      time.Now,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/batches", h.HandleSubmit).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/batches/sync", h.HandleSync).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/batches/{batchId}", h.HandleStatus).Methods("GET", "OPTIONS")
	log.Info().Msg("✅ Batch routes registered: /api/batches, /api/batches/sync, /api/batches/{batchId}")
}

func (c configRequest) toModel() (model.ProcessingConfiguration, error) {
	ops, err := model.ParseOperations(c.Operations)
	if err != nil {
		return model.ProcessingConfiguration{}, err
	}
	return model.ProcessingConfiguration{
		Operations:      ops,
		ResizeMode:      model.ResizeMode(c.ResizeMode),
		Preset:          c.Preset,
		Custom:          c.Custom,
		Percentage:      c.Percentage,
		CompressQuality: c.CompressQuality,
		RecolorTarget:   c.RecolorTarget,
		AutoDetect:      c.AutoDetect,
	}, nil
}

// pending - 파일 배치는 Submission, 나머지는 Job
type pending struct {
	sub *Submission
	job *Job
}

func (p pending) ids() (batchID, userID string, source model.SourceKind) {
	if p.sub != nil {
		return p.sub.BatchID, p.sub.UserID, p.sub.Source
	}
	return p.job.BatchID, p.job.UserID, p.job.Source
}

func (p pending) setBatchID(id string) {
	if p.sub != nil {
		p.sub.BatchID = id
		return
	}
	p.job.BatchID = id
}

// check - 큐에 넣기 전 가능한 검증은 미리 수행
func (p pending) check() error {
	if p.sub != nil {
		return p.sub.Check()
	}
	if p.job.UserID == "" {
		return ErrUnauthenticated
	}
	return p.job.Config.Validate()
}

func (h *Handler) parse(r *http.Request) (pending, error) {
	batchID := h.batchIDs.Next(h.now())
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		sub, err := h.parseMultipart(r)
		if err != nil {
			return pending{}, err
		}
		sub.BatchID = batchID
		return pending{sub: sub}, nil
	}

	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return pending{}, apierr.Validation("batch", "invalid request body: %v", err)
	}
	if err := validate.Struct("batch", body); err != nil {
		return pending{}, err
	}
	cfg, err := body.Config.toModel()
	if err != nil {
		return pending{}, err
	}
	return pending{job: &Job{
		BatchID:     batchID,
		UserID:      fallback.SafeString(body.UserID, r.Header.Get("X-User-Id")),
		Source:      model.SourceKind(body.Source),
		URLs:        body.URLs,
		CSV:         body.CSV,
		Spreadsheet: body.Spreadsheet,
		PageURL:     body.PageURL,
		Config:      cfg,
		EnqueuedAt:  h.now(),
	}}, nil
}

// parseMultipart - files[] + config(JSON) 또는 개별 폼 필드
func (h *Handler) parseMultipart(r *http.Request) (*Submission, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, apierr.Validation("batch", "invalid multipart form: %v", err)
	}

	var creq configRequest
	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &creq); err != nil {
			return nil, apierr.Validation("batch", "invalid config field: %v", err)
		}
	} else {
		creq = configRequest{
			Operations:      fallback.SafeList(r.FormValue("operations")),
			ResizeMode:      fallback.SafeString(r.FormValue("resizeMode"), ""),
			Percentage:      fallback.SafeInt(r.FormValue("percentage"), 0),
			CompressQuality: fallback.SafeInt(r.FormValue("quality"), 0),
			RecolorTarget:   fallback.SafeString(r.FormValue("recolorTarget"), ""),
			AutoDetect:      fallback.SafeBool(r.FormValue("autoDetect"), false),
		}
		dims := model.ResizeOptions{
			Width:  fallback.SafeInt(r.FormValue("width"), 0),
			Height: fallback.SafeInt(r.FormValue("height"), 0),
		}
		creq.Preset, creq.Custom = dims, dims
	}
	if err := validate.Struct("batch", creq); err != nil {
		return nil, err
	}
	cfg, err := creq.toModel()
	if err != nil {
		return nil, err
	}

	candidates, err := collect.FromFiles(r.MultipartForm.File["files"], h.maxBytes)
	if err != nil {
		return nil, err
	}
	return &Submission{
		UserID:     fallback.SafeString(r.FormValue("userId"), r.Header.Get("X-User-Id")),
		Source:     model.SourceFile,
		Candidates: candidates,
		Config:     cfg,
	}, nil
}

// HandleSubmit - POST /api/batches → 202 {batchId}
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	p, err := h.parse(r)
	if err == nil {
		err = p.check()
	}
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Batch] Submit rejected")
		writeError(w, err)
		return
	}

	h.reserve(r.Context(), p)
	batchID, _, source := p.ids()

	resp := SubmitResponse{Success: true, BatchID: batchID, Status: model.StatusPending}
	bg := context.WithoutCancel(r.Context())

	switch {
	case p.sub != nil:
		go h.exec.Run(bg, *p.sub)
	case h.queue != nil:
		pos, err := h.queue.Enqueue(r.Context(), *p.job)
		if err != nil {
			log.Error().Err(err).Str("batch_id", batchID).Msg("❌ [Batch] Enqueue failed")
			writeError(w, err)
			return
		}
		resp.Queued = true
		resp.QueuePosition = pos
	default:
		go h.exec.RunJob(bg, *p.job, h.client)
	}

	log.Info().Str("batch_id", batchID).Str("source", string(source)).Bool("queued", resp.Queued).Msg("📥 [Batch] Accepted")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// reserve - pending 스냅샷 선점, 다른 제출이 같은 id를 쓰고 있으면 다음 id로 교체
func (h *Handler) reserve(ctx context.Context, p pending) {
	if h.exec.Status == nil {
		return
	}
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		batchID, userID, source := p.ids()
		ok, err := h.exec.Status.Reserve(ctx, Pending(batchID, userID, source))
		if err != nil {
			log.Warn().Err(err).Str("batch_id", batchID).Msg("⚠️  [Status] Pending save failed")
			return
		}
		if ok {
			return
		}
		log.Warn().Str("batch_id", batchID).Msg("⚠️  [Batch] Batch id already in use, issuing next")
		p.setBatchID(h.batchIDs.Next(h.now()))
	}
}

// HandleSync - POST /api/batches/sync → BatchResult
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	p, err := h.parse(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var result *model.BatchResult
	if p.sub != nil {
		result, err = h.exec.Run(ctx, *p.sub)
	} else {
		result, err = h.exec.RunJob(ctx, *p.job, h.client)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(ResultResponse{Success: true, Result: result})
}

// HandleStatus - GET /api/batches/{batchId}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.exec.Status == nil {
		writeError(w, ErrBatchNotFound)
		return
	}

	snap, err := h.exec.Status.Get(r.Context(), mux.Vars(r)["batchId"])
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(snap)
}

// statusFor - 배치 단위 에러는 별도 상태코드
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNoCandidates):
		return http.StatusBadRequest
	case errors.Is(err, ErrBatchNotFound):
		return http.StatusNotFound
	}
	return processing.StatusFor(err)
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(SubmitResponse{
		Success: false,
		Error:   err.Error(),
		Kind:    string(apierr.KindOf(err)),
	})
}
