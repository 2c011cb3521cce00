package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpH "github.com/pagi-labs/operator-console/internal/http/handlers"
)

type RouterConfig struct {
	ConsoleHandler *httpH.ConsoleHandler
	ClusterHandler *httpH.ClusterHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	if cfg.HealthHandler != nil {
		r.GET("/api/health", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if h := cfg.ConsoleHandler; h != nil {
			api.POST("/chat", h.SendChat)
			api.GET("/chat/history", h.History)
			api.GET("/chat/transcript", h.Transcript)

			api.GET("/session", h.Session)
			api.POST("/session/new", h.NewSession)
			api.POST("/session/switch", h.SwitchSession)

			api.GET("/attribution/summary", h.AttributionSummary)
			api.GET("/status", h.Status)

			api.GET("/telemetry/recent", h.TelemetryRecent)
			api.GET("/memoryflow/recent", h.MemoryFlowRecent)
		}

		if h := cfg.ClusterHandler; h != nil {
			api.GET("/scheduled-tasks", h.ListScheduledTasks)
			api.POST("/scheduled-tasks", h.CreateScheduledTask)
			api.DELETE("/scheduled-tasks/:id", h.DeleteScheduledTask)

			api.GET("/agents/search", h.SearchAgents)
			api.GET("/metrics/stations", h.StationMetrics)

			api.GET("/agents/:id/persona", h.GetPersona)
			api.POST("/agents/persona", h.AssignPersona)
			api.GET("/agents/personas", h.ListPersonas)

			api.GET("/tool-proposals", h.ListToolProposals)
			api.POST("/tool-proposals/:id/simulate", h.SimulateToolProposal)

			api.GET("/consensus/votes/:id", h.ConsensusVotes)
			api.POST("/consensus/override", h.SubmitOverride)

			api.GET("/memory/stats", h.MemoryStats)
			api.GET("/memory/heatmap", h.TopicHeatMap)
			api.POST("/memory/prune", h.PruneTopic)

			api.GET("/network/mesh-health", h.MeshHealth)
			api.GET("/network/topology", h.NetworkTopology)

			api.POST("/system/pause", h.PauseSystem)
			api.POST("/system/resume", h.ResumeSystem)
			api.GET("/system/pause-status", h.PauseStatus)
		}
	}

	return r
}
