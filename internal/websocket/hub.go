package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientCommand is what connected clients may send: room channel membership.
type clientCommand struct {
	Type   string `json:"type"` // "subscribe_room" | "unsubscribe_room"
	RoomID string `json:"room_id"`
}

// client wraps a connection with a write lock. A connection subscribed to
// room channels is reachable from more than one relay goroutine, and the
// underlying conn does not tolerate concurrent writers.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub relays Redis pub/sub messages to websocket clients. Each user gets
// their private channel on connect; room channels are joined on demand.
type Hub struct {
	mu          sync.RWMutex
	userConns   map[uuid.UUID][]*client
	roomConns   map[uuid.UUID][]*client
	userCancels map[uuid.UUID]context.CancelFunc
	roomCancels map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	auth        *middleware.JWTAuth
	resolver    middleware.UserResolver
}

func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth, resolver middleware.UserResolver) *Hub {
	return &Hub{
		userConns:   make(map[uuid.UUID][]*client),
		roomConns:   make(map[uuid.UUID][]*client),
		userCancels: make(map[uuid.UUID]context.CancelFunc),
		roomCancels: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		resolver:    resolver,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket dials, so the token rides in
	// the query string.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identity, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := h.resolver.ResolveExternalID(r.Context(), identity.ExternalID)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn}
	h.registerUser(userID, c)

	go h.readLoop(userID, c)
}

func (h *Hub) readLoop(userID uuid.UUID, c *client) {
	var rooms []uuid.UUID
	defer func() {
		for _, roomID := range rooms {
			h.unregisterRoom(roomID, c)
		}
		h.unregisterUser(userID, c)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		roomID, err := uuid.Parse(cmd.RoomID)
		if err != nil {
			continue
		}

		switch cmd.Type {
		case "subscribe_room":
			h.registerRoom(roomID, c)
			rooms = append(rooms, roomID)
		case "unsubscribe_room":
			h.unregisterRoom(roomID, c)
			for i, id := range rooms {
				if id == roomID {
					rooms = append(rooms[:i], rooms[i+1:]...)
					break
				}
			}
		}
	}
}

func (h *Hub) registerUser(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.userConns[userID] = append(h.userConns[userID], c)

	// First connection for this user starts the pub/sub relay.
	if len(h.userConns[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.userCancels[userID] = cancel
		go h.relay(ctx, "user_updates:"+userID.String(), func(data []byte) {
			h.broadcastUser(userID, data)
		})
	}

	log.Printf("WebSocket connected: user %s (total: %d)", userID, len(h.userConns[userID]))
}

func (h *Hub) unregisterUser(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.userConns[userID]
	for i, existing := range conns {
		if existing == c {
			h.userConns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.userConns[userID]) == 0 {
		delete(h.userConns, userID)
		if cancel, ok := h.userCancels[userID]; ok {
			cancel()
			delete(h.userCancels, userID)
		}
	}

	log.Printf("WebSocket disconnected: user %s", userID)
}

func (h *Hub) registerRoom(roomID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.roomConns[roomID] {
		if existing == c {
			return
		}
	}
	h.roomConns[roomID] = append(h.roomConns[roomID], c)

	if len(h.roomConns[roomID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.roomCancels[roomID] = cancel
		go h.relay(ctx, "room_updates:"+roomID.String(), func(data []byte) {
			h.broadcastRoom(roomID, data)
		})
	}
}

func (h *Hub) unregisterRoom(roomID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.roomConns[roomID]
	for i, existing := range conns {
		if existing == c {
			h.roomConns[roomID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.roomConns[roomID]) == 0 {
		delete(h.roomConns, roomID)
		if cancel, ok := h.roomCancels[roomID]; ok {
			cancel()
			delete(h.roomCancels, roomID)
		}
	}
}

func (h *Hub) relay(ctx context.Context, channel string, deliver func([]byte)) {
	pubsub := h.redisClient.Subscribe(ctx, channel)
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
			deliver([]byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcastUser(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.userConns[userID] {
		c.write(data)
	}
}

func (h *Hub) broadcastRoom(roomID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.roomConns[roomID] {
		c.write(data)
	}
}
