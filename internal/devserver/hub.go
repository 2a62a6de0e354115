package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zfogg/feedsync/pkg/realtime"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

type hubClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans realtime events out to connected websocket clients
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*hubClient]struct{}
	closed  bool
}

func newHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*hubClient]struct{}),
	}
}

// Connections returns the number of open client connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{userID: viewer(c), conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(client) {
		_ = conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) register(client *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*hubClient]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	h.log.Debug("WebSocket client connected", zap.String("user_id", client.userID))
	return true
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	if set, ok := h.clients[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
	h.mu.Unlock()
	client.close()
}

func (h *Hub) readPump(client *hubClient) {
	defer func() {
		h.unregister(client)
		_ = client.conn.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := realtime.ParseEvent(data)
		if err != nil {
			continue
		}
		if ev.Type == realtime.EventHeartbeat {
			h.enqueue(client, realtime.Event{Type: realtime.EventPong})
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	defer client.conn.Close()
	for data := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("WebSocket write failed", zap.String("user_id", client.userID), zap.Error(err))
			return
		}
	}
	_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) enqueue(client *hubClient, ev realtime.Event) {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.userID][client]; ok {
		h.deliver(client, data)
	}
}

// deliver must be called with h.mu held so client.send is not closed under it
func (h *Hub) deliver(client *hubClient, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.Warn("Dropping event for slow client", zap.String("user_id", client.userID))
	}
}

// SendToUser delivers ev to every connection of the given users
func (h *Hub) SendToUser(ev realtime.Event, userIDs ...string) {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range userIDs {
		for client := range h.clients[id] {
			h.deliver(client, data)
		}
	}
}

// Broadcast delivers ev to every connection
func (h *Hub) Broadcast(ev realtime.Event) {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for client := range set {
			h.deliver(client, data)
		}
	}
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]map[*hubClient]struct{})
	h.mu.Unlock()

	for _, set := range clients {
		for client := range set {
			client.close()
		}
	}
}
