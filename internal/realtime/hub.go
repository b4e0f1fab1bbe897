package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kylejeon/testflow/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Event is a broadcast notification scoped to one project.
type Event struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"project_id"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

// Event types published by the API layer.
const (
	EventCaseChanged   = "test_case.changed"
	EventCaseDeleted   = "test_case.deleted"
	EventRunProgress   = "run.progress"
	EventMemberChanged = "member.changed"
)

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	projectID string
	send      chan []byte
}

// Hub fans project events out to connected WebSocket clients. Each client
// subscribes to exactly one project.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	origins  map[string]struct{}
	upgrader websocket.Upgrader
}

// NewHub constructs an empty hub. Upgrade requests are accepted from the
// given browser origins; with none configured, any origin is accepted.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		origins: make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		h.origins[strings.ToLower(origin)] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin gates cross-site WebSocket upgrades. Requests without an
// Origin header come from non-browser clients and pass through; browser
// requests must be same-host or match a configured origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return len(h.origins) == 0
}

// Subscribe upgrades the HTTP connection and registers it for the project's
// events. It returns once the socket is handed off to its pump goroutines.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, projectID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		hub:       h,
		conn:      conn,
		projectID: projectID,
		send:      make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*client]struct{})
	}
	h.clients[projectID][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
	return nil
}

// Publish sends an event to every subscriber of its project. Slow clients
// are disconnected rather than allowed to block the hub.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("realtime: encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.clients[event.ProjectID]))
	for c := range h.clients[event.ProjectID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		select {
		case c.send <- data:
		default:
			h.drop(c)
		}
	}
}

// Count reports the number of subscribers for a project.
func (h *Hub) Count(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.projectID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.projectID)
			}
		}
	}
	h.mu.Unlock()
}

// readPump discards inbound frames; the socket is broadcast-only. It exists
// to process control frames and detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
