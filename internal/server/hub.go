package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"deepgraph/internal/logging"
	"deepgraph/internal/workflow"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub broadcasts run events to connected websocket clients. It implements
// workflow.Listener; a slow client's queue overflows and the client is
// dropped rather than stalling the run.
type Hub struct {
	logger logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan workflow.Event
}

// NewHub returns an empty Hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:  logging.OrNop(logger),
		clients: make(map[*client]struct{}),
	}
}

// OnEvent fans the event out to all connected clients.
func (h *Hub) OnEvent(event workflow.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.logger.Warn("dropping slow websocket client")
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// HandleUpgrade upgrades the request to a websocket and streams events
// until the client disconnects.
func (h *Hub) HandleUpgrade(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	cl := &client{conn: conn, send: make(chan workflow.Event, 64)}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(cl)
	go h.readLoop(cl)
}

func (h *Hub) writeLoop(cl *client) {
	defer func() { _ = cl.conn.Close() }()
	for event := range cl.send {
		if err := cl.conn.WriteJSON(event); err != nil {
			h.remove(cl)
			return
		}
	}
}

// readLoop drains client frames so pings and close messages are processed.
func (h *Hub) readLoop(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl)
			_ = cl.conn.Close()
			return
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}
