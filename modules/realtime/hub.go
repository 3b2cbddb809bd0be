package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/batch"
	"product-studio-server/modules/common/model"
)

const (
	MessageProgress      = "progress"
	MessageBatchComplete = "batch_complete"
	MessageConnected     = "connected"

	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// Message - 클라이언트로 보내는 메시지
type Message struct {
	Type     string          `json:"type"`
	UserID   string          `json:"userId"`
	BatchID  string          `json:"batchId,omitempty"`
	Progress *model.Progress `json:"progress,omitempty"`
	Summary  *Summary        `json:"summary,omitempty"`
}

// Summary - batch_complete 메시지 본문 (outcome 전체는 GET /api/batches/{id})
type Summary struct {
	Status            string              `json:"status"`
	Images            []model.OutputImage `json:"images"`
	Total             int                 `json:"total"`
	SuccessfullyFixed int                 `json:"successfullyFixed"`
	AppliedOperations []model.Operation   `json:"appliedOperations"`
	QualityScore      *int                `json:"qualityScore,omitempty"`
}

// client - 연결 1개 (같은 사용자가 여러 탭을 열 수 있음)
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// room - 사용자별 연결 묶음
type room struct {
	clients      map[string]*client
	createdAt    time.Time
	lastActivity time.Time
}

// Stats - 허브 상태
type Stats struct {
	ActiveUsers      int       `json:"activeUsers"`
	CurrentClients   int       `json:"currentClients"`
	TotalConnections int       `json:"totalConnections"`
	MessagesSent     int       `json:"messagesSent"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
}

// Hub - 사용자별 배치 진행률 브로드캐스트
type Hub struct {
	mu               sync.RWMutex
	rooms            map[string]*room
	totalConnections int
	messagesSent     int
	startTime        time.Time
}

func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]*room),
		startTime: time.Now(),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.userID]
	if !ok {
		r = &room{clients: map[string]*client{}, createdAt: time.Now()}
		h.rooms[c.userID] = r
	}
	r.clients[c.id] = c
	r.lastActivity = time.Now()
	h.totalConnections++

	log.Info().
		Str("user_id", c.userID).
		Int("clients", len(r.clients)).
		Int("total_connections", h.totalConnections).
		Msg("👤 [Realtime] Client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked - h.mu 보유 상태에서 호출
func (h *Hub) removeLocked(c *client) {
	r, ok := h.rooms[c.userID]
	if !ok {
		return
	}
	if _, ok := r.clients[c.id]; !ok {
		return
	}
	delete(r.clients, c.id)
	close(c.send)
	log.Info().Str("user_id", c.userID).Int("remaining", len(r.clients)).Msg("👋 [Realtime] Client left")
}

// Send - 사용자의 모든 연결로 전송. 버퍼가 가득 찬 연결은 끊음
func (h *Hub) Send(userID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("❌ [Realtime] Failed to marshal message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[userID]
	if !ok {
		return
	}
	r.lastActivity = time.Now()
	for _, c := range r.clients {
		select {
		case c.send <- data:
			h.messagesSent++
		default:
			log.Warn().Str("user_id", userID).Msg("⚠️  [Realtime] Slow client dropped")
			h.removeLocked(c)
		}
	}
}

// SendProgress - batch.ProgressSink 구현
func (h *Hub) SendProgress(userID string, p model.Progress) {
	h.Send(userID, Message{Type: MessageProgress, UserID: userID, BatchID: p.BatchID, Progress: &p})
}

// OnBatchComplete - batch.Listener
func (h *Hub) OnBatchComplete(_ context.Context, b batch.Completed) {
	h.Send(b.UserID, Message{
		Type:    MessageBatchComplete,
		UserID:  b.UserID,
		BatchID: b.Result.BatchID,
		Summary: summarize(b.Result),
	})
}

func summarize(r *model.BatchResult) *Summary {
	s := &Summary{
		Status:            r.Status(),
		Images:            r.Images,
		Total:             r.Total,
		SuccessfullyFixed: r.SuccessfullyFixed,
		AppliedOperations: r.AppliedOperations,
	}
	if r.Quality != nil {
		score := r.Quality.Score
		s.QualityScore = &score
	}
	return s
}

// Stats - 현재 상태 스냅샷
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		StartTime:        h.startTime,
		Uptime:           time.Since(h.startTime).String(),
	}
	for _, r := range h.rooms {
		if len(r.clients) > 0 {
			s.ActiveUsers++
		}
		s.CurrentClients += len(r.clients)
	}
	return s
}

// cleanupEmptyRooms - 연결이 없고 maxIdle 이상 조용한 room 제거
func (h *Hub) cleanupEmptyRooms(maxIdle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cleaned := 0
	for userID, r := range h.rooms {
		if len(r.clients) == 0 && time.Since(r.lastActivity) >= maxIdle {
			delete(h.rooms, userID)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Info().Int("cleaned", cleaned).Msg("🧹 [Realtime] Cleaned up empty rooms")
	}
	return cleaned
}

// StartCleanup - 5분마다 빈 room 정리 (ctx 종료 시 중단)
func (h *Hub) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.cleanupEmptyRooms(5 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Info().Msg("🔄 [Realtime] Started room cleanup routine (5min)")
}

func newClient(userID string, conn *websocket.Conn) *client {
	return &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// readPump - 클라이언트 메시지는 무시하고 연결 종료만 감지
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.userID).Msg("⚠️  [Realtime] WebSocket error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("user_id", c.userID).Msg("⚠️  [Realtime] WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
