package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagi-labs/operator-console/internal/feeds"
	"github.com/pagi-labs/operator-console/internal/http/response"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
	"github.com/pagi-labs/operator-console/internal/session"
)

// ConsoleHandler serves the session-scoped state the dashboard renders:
// the live transcript, attribution summary, identity and connection flags.
type ConsoleHandler struct {
	Log        *logger.Logger
	Controller *session.Controller
	Telemetry  *feeds.Stream
	MemoryFlow *feeds.Stream
}

func NewConsoleHandler(log *logger.Logger, ctrl *session.Controller, telemetry, memoryFlow *feeds.Stream) *ConsoleHandler {
	return &ConsoleHandler{
		Log:        log,
		Controller: ctrl,
		Telemetry:  telemetry,
		MemoryFlow: memoryFlow,
	}
}

type sendChatRequest struct {
	Message     string   `json:"message" binding:"required"`
	MediaActive *bool    `json:"media_active,omitempty"`
	UserName    string   `json:"user_name,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	MaxMemory   *int     `json:"max_memory,omitempty"`
}

func (h *ConsoleHandler) SendChat(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sent := h.Controller.SendChat(req.Message, session.ChatOptions{
		MediaActive: req.MediaActive,
		UserName:    req.UserName,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		MaxMemory:   req.MaxMemory,
	})
	response.RespondOK(c, gin.H{"sent": sent})
}

func (h *ConsoleHandler) Transcript(c *gin.Context) {
	response.RespondOK(c, gin.H{"entries": h.Controller.Transcript()})
}

func (h *ConsoleHandler) History(c *gin.Context) {
	response.RespondOK(c, gin.H{"messages": h.Controller.History()})
}

func (h *ConsoleHandler) Session(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"session_id": h.Controller.SessionID(),
		"connected":  h.Controller.Connected(),
	})
}

func (h *ConsoleHandler) NewSession(c *gin.Context) {
	id := h.Controller.NewSession()
	response.RespondOK(c, gin.H{"session_id": id})
}

type switchSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (h *ConsoleHandler) SwitchSession(c *gin.Context) {
	var req switchSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.Controller.SwitchSession(req.SessionID)
	response.RespondOK(c, gin.H{"session_id": h.Controller.SessionID()})
}

func (h *ConsoleHandler) AttributionSummary(c *gin.Context) {
	agg := h.Controller.Attribution()
	response.RespondOK(c, gin.H{
		"average":    agg.SessionAverage(),
		"drift":      agg.Drift(),
		"ingestions": agg.IngestionCounts(),
	})
}

func (h *ConsoleHandler) Status(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"twin_connected":        h.Controller.Connected(),
		"telemetry_connected":   h.Telemetry.Connected(),
		"memory_flow_connected": h.MemoryFlow.Connected(),
	})
}

func (h *ConsoleHandler) TelemetryRecent(c *gin.Context) {
	response.RespondOK(c, gin.H{"items": h.Telemetry.Recent()})
}

func (h *ConsoleHandler) MemoryFlowRecent(c *gin.Context) {
	response.RespondOK(c, gin.H{"items": h.MemoryFlow.Recent()})
}
