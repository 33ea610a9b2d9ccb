package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local observers only; the API binds to loopback
	},
}

// ProgressHub mirrors every event pushed to the caller out to connected
// WebSocket observers. It implements app.Sender so it can sit alongside the
// stdio transport.
type ProgressHub struct {
	logger *zap.Logger

	// mu guards the client set and serializes every connection write; the
	// websocket library permits only one writer at a time.
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewProgressHub creates a new progress hub
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	return &ProgressHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Send broadcasts one event to every connected observer. Never fails: a slow
// or dead observer is dropped, not propagated to the session.
func (h *ProgressHub) Send(ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event for broadcast", zap.Error(err))
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Connection is cleaned up by its handler goroutine
			h.logger.Debug("Failed to push to observer", zap.Error(err))
		}
	}
	return nil
}

// HandleWebSocket handles GET /ws/progress
func (h *ProgressHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	h.logger.Info("WebSocket observer connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read loop for ping/pong; also detects the observer going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
