package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS와 동일하게 모든 origin 허용
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes - 라우트 등록
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket)
	r.HandleFunc("/api/realtime/stats", h.HandleStats).Methods("GET")
	log.Info().Msg("✅ Realtime routes registered: /ws, /api/realtime/stats")
}

// HandleWebSocket - GET /ws?userId=
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Realtime] WebSocket upgrade failed")
		return
	}

	c := newClient(userID, conn)
	h.register(c)

	// pump 시작 전이라 send가 닫힐 수 없음
	if data, err := json.Marshal(Message{Type: MessageConnected, UserID: userID}); err == nil {
		c.send <- data
	}

	go c.writePump()
	go c.readPump(h)
}

// HandleStats - GET /api/realtime/stats
func (h *Hub) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Stats())
}
