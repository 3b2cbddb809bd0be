package worker

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// QueueResponse - 큐 상태 응답
type QueueResponse struct {
	Success bool   `json:"success"`
	Queue   string `json:"queue,omitempty"`
	Length  int64  `json:"length"`
	Error   string `json:"error,omitempty"`
}

// Handler - 큐 상태 조회
type Handler struct {
	queue *Queue
}

func NewHandler(queue *Queue) *Handler {
	return &Handler{queue: queue}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/queue", h.HandleQueue).Methods("GET", "OPTIONS")
	log.Info().Msg("✅ Queue routes registered: /api/queue")
}

// HandleQueue - GET /api/queue
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	n, err := h.queue.Len(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("❌ [Queue] Redis LLEN failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(QueueResponse{Success: false, Error: err.Error()})
		return
	}
	json.NewEncoder(w).Encode(QueueResponse{Success: true, Queue: h.queue.name, Length: n})
}
