package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves a session token to its session ID.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// SnapshotFunc returns the session's current view, sent to a client as soon
// as it connects.
type SnapshotFunc func(sessionID uuid.UUID) (models.View, bool)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans controller state updates out to the session's WebSocket clients.
// With Redis, updates travel over pub/sub so any instance can deliver them.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	tokens      TokenParser
	snapshot    SnapshotFunc
	cancelFuncs map[uuid.UUID]context.CancelFunc
	wg          sync.WaitGroup
}

// NewHub builds a hub. redisClient may be nil for single-instance delivery.
func NewHub(redisClient *redis.Client, tokens TokenParser, snapshot SnapshotFunc) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		tokens:      tokens,
		snapshot:    snapshot,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.tokens.Parse(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

	if h.snapshot != nil {
		if view, ok := h.snapshot(sessionID); ok {
			if data, err := json.Marshal(models.WSMessage{Type: models.WSTypeStateUpdate, Payload: view}); err == nil {
				c.write(data)
			}
		}
	}

	// Keep connection alive and handle disconnect
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.subscribeToPubSub(ctx, sessionID)
		}()
	}

	log.WithField("session_id", sessionID).Debugf("WebSocket connected (total: %d)", len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.WithField("session_id", sessionID).Debug("WebSocket disconnected")
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			log.WithError(err).WithField("session_id", sessionID).Debug("WebSocket write failed")
		}
	}
}

// Publish delivers msg to every client of the session.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, channelName(sessionID), string(data)).Err(); err != nil {
			log.WithError(err).WithField("session_id", sessionID).Warn("failed to publish update")
		}
		return
	}
	h.broadcast(sessionID, data)
}

// Observer returns a controller observer that publishes every transition.
func (h *Hub) Observer(sessionID uuid.UUID) func(models.View) {
	return func(view models.View) {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		h.Publish(ctx, sessionID, models.WSMessage{Type: models.WSTypeStateUpdate, Payload: view})
	}
}

// ConnectionCount reports the number of open connections for a session.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// Close disconnects every client and waits for the hub's goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
	}
	for _, cancel := range h.cancelFuncs {
		cancel()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
