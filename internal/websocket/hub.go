package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"court-advisor-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "chat_stream_events"

// Hub fans stream frames out to every socket watching a session, including
// sockets held by other instances when Redis is configured.
type Hub struct {
	// Registered clients: session key -> sockets (several tabs may watch one session)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance delivery, nil when running alone
	rdb *redis.Client

	logger logger.ILogger

	// id tells this instance's Redis publications apart from others'
	id string
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
		id:         uuid.NewString(),
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionKey] = append(h.clients[client.SessionKey], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Client registered", map[string]interface{}{"session_key": client.SessionKey})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.SessionKey]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionKey] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionKey]) == 0 {
		delete(h.clients, client.SessionKey)
		h.logger.Debug("Hub", "Last client for session left", map[string]interface{}{"session_key": client.SessionKey})
	}
}

// Watchers returns how many local sockets follow the session.
func (h *Hub) Watchers(sessionKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionKey])
}

// Send delivers a frame to local watchers and publishes it for other instances.
func (h *Hub) Send(sessionKey string, frame []byte) {
	h.deliver(sessionKey, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{SessionKey: sessionKey, Message: frame, Origin: h.id})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish frame to Redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliver(sessionKey string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range append([]*Client(nil), h.clients[sessionKey]...) {
		select {
		case client.Send <- frame:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"session_key": sessionKey})
			h.remove(client)
		}
	}
}

type clusterMessage struct {
	SessionKey string          `json:"session_key"`
	Message    json.RawMessage `json:"message"`
	Origin     string          `json:"origin"`
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		// Our own publications come back too and were already delivered.
		if payload.Origin == h.id {
			continue
		}
		h.deliver(payload.SessionKey, payload.Message)
	}
}
