package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/dispatch"
)

const liveWriteTimeout = 10 * time.Second

// liveClient is one connected websocket. The websocket package allows
// a single concurrent writer per connection, so every write goes
// through the client's mutex.
type liveClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *liveClient) send(entries []dispatch.ResolvedDispatchEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return c.conn.WriteJSON(entries)
}

// LiveHandler streams the resolved record set over a websocket. Every
// connected client receives the full list on connect and again after
// every change the engine observes.
type LiveHandler struct {
	engine   *dispatch.Engine
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

// NewLiveHandler creates a new live feed handler
func NewLiveHandler(engine *dispatch.Engine) *LiveHandler {
	return &LiveHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*liveClient]struct{}),
	}
}

// Serve handles GET /api/dispatch/live.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Websocket upgrade failed")
		return
	}

	client := &liveClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	if err := client.send(h.engine.Entries()); err != nil {
		h.drop(client)
		return
	}

	// The read loop only exists to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(client)
				return
			}
		}
	}()
}

// Broadcast pushes the current resolved record set to every connected
// client. Wire it to the engine's change notification.
func (h *LiveHandler) Broadcast() {
	entries := h.engine.Entries()

	h.mu.Lock()
	clients := make([]*liveClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.send(entries); err != nil {
			h.drop(client)
		}
	}
}

// Close disconnects every client.
func (h *LiveHandler) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*liveClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.conn.Close()
	}
}

func (h *LiveHandler) drop(client *liveClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if ok {
		client.conn.Close()
	}
}
