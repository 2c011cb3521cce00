package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagi-labs/operator-console/internal/clients/orchestrator"
	"github.com/pagi-labs/operator-console/internal/http/response"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// ClusterHandler is a thin passthrough to the orchestrator collaborators.
// The console adds no behavior here beyond surfacing typed failures.
type ClusterHandler struct {
	Log          *logger.Logger
	Orchestrator orchestrator.Client
}

func NewClusterHandler(log *logger.Logger, orch orchestrator.Client) *ClusterHandler {
	return &ClusterHandler{Log: log, Orchestrator: orch}
}

func (h *ClusterHandler) ListScheduledTasks(c *gin.Context) {
	tasks, err := h.Orchestrator.ListScheduledTasks(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks})
}

func (h *ClusterHandler) CreateScheduledTask(c *gin.Context) {
	var req orchestrator.CreateScheduledTask
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	task, err := h.Orchestrator.CreateScheduledTask(c.Request.Context(), req)
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"task": task})
}

func (h *ClusterHandler) DeleteScheduledTask(c *gin.Context) {
	if err := h.Orchestrator.DeleteScheduledTask(c.Request.Context(), c.Param("id")); err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

func (h *ClusterHandler) SearchAgents(c *gin.Context) {
	agents, err := h.Orchestrator.SearchAgents(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agents": agents})
}

func (h *ClusterHandler) StationMetrics(c *gin.Context) {
	stations, err := h.Orchestrator.StationMetrics(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stations": stations})
}

func (h *ClusterHandler) GetPersona(c *gin.Context) {
	persona, err := h.Orchestrator.GetPersona(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, persona)
}

func (h *ClusterHandler) AssignPersona(c *gin.Context) {
	var req orchestrator.AssignPersona
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	persona, err := h.Orchestrator.AssignPersona(c.Request.Context(), req)
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, persona)
}

func (h *ClusterHandler) ListPersonas(c *gin.Context) {
	personas, err := h.Orchestrator.ListPersonas(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"personas": personas})
}

func (h *ClusterHandler) ListToolProposals(c *gin.Context) {
	proposals, err := h.Orchestrator.ListToolProposals(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"proposals": proposals})
}

func (h *ClusterHandler) SimulateToolProposal(c *gin.Context) {
	result, err := h.Orchestrator.SimulateToolProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *ClusterHandler) ConsensusVotes(c *gin.Context) {
	votes, err := h.Orchestrator.ConsensusVotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"votes": votes})
}

func (h *ClusterHandler) SubmitOverride(c *gin.Context) {
	var req orchestrator.StrategicOverride
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.Orchestrator.SubmitOverride(c.Request.Context(), req)
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *ClusterHandler) MemoryStats(c *gin.Context) {
	stats, err := h.Orchestrator.MemoryStats(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, stats)
}

func (h *ClusterHandler) TopicHeatMap(c *gin.Context) {
	heatmap, err := h.Orchestrator.TopicHeatMap(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, heatmap)
}

func (h *ClusterHandler) PruneTopic(c *gin.Context) {
	var req struct {
		Topic string `json:"topic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.Orchestrator.PruneTopic(c.Request.Context(), req.Topic)
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *ClusterHandler) MeshHealth(c *gin.Context) {
	report, err := h.Orchestrator.MeshHealth(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *ClusterHandler) NetworkTopology(c *gin.Context) {
	topology, err := h.Orchestrator.NetworkTopology(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, topology)
}

func (h *ClusterHandler) PauseSystem(c *gin.Context) {
	if err := h.Orchestrator.PauseSystem(c.Request.Context()); err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"paused": true})
}

func (h *ClusterHandler) ResumeSystem(c *gin.Context) {
	if err := h.Orchestrator.ResumeSystem(c.Request.Context()); err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"paused": false})
}

func (h *ClusterHandler) PauseStatus(c *gin.Context) {
	status, err := h.Orchestrator.PauseStatus(c.Request.Context())
	if err != nil {
		response.RespondCollaboratorError(c, err)
		return
	}
	response.RespondOK(c, status)
}
