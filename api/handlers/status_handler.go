package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/internal/app"
	"github.com/yourusername/medialink-go/internal/domain"
)

// StatusHandler serves host health, active sessions and transfer history
type StatusHandler struct {
	orch    *app.Orchestrator
	history domain.HistoryRepository
	logger  *zap.Logger
}

// NewStatusHandler creates a new status handler. history may be nil when
// persistence is disabled.
func NewStatusHandler(orch *app.Orchestrator, history domain.HistoryRepository, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{orch: orch, history: history, logger: logger}
}

// Health handles GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": len(h.orch.ActiveSessions()),
	})
}

// ListSessions handles GET /api/v1/sessions
func (h *StatusHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.orch.ActiveSessions()})
}

// ListHistory handles GET /api/v1/history
func (h *StatusHandler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.history.FindRecent(limit)
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

// HistoryStats handles GET /api/v1/history/stats
func (h *StatusHandler) HistoryStats(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	counts, err := h.history.CountByOutcome()
	if err != nil {
		h.logger.Error("Failed to read history stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": counts})
}
