package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagi-labs/operator-console/internal/platform/apierr"
	"github.com/pagi-labs/operator-console/internal/platform/httpx"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// Client wraps the orchestrator's REST surface behind typed methods. Every
// failure comes back as an *apierr.Error so callers can branch on status
// and still show a human-readable message.
type Client interface {
	ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error)
	CreateScheduledTask(ctx context.Context, task CreateScheduledTask) (*ScheduledTask, error)
	DeleteScheduledTask(ctx context.Context, id string) error

	SearchAgents(ctx context.Context, query string) ([]Agent, error)
	// StationMetrics degrades: an unavailable metrics endpoint yields an
	// empty slice and no error, so a dashboard renders "zero agents
	// reporting" instead of failing the whole view.
	StationMetrics(ctx context.Context) ([]AgentStationMetrics, error)

	GetPersona(ctx context.Context, agentID string) (*AgentPersona, error)
	AssignPersona(ctx context.Context, assign AssignPersona) (*AgentPersona, error)
	ListPersonas(ctx context.Context) ([]AgentPersona, error)

	ListToolProposals(ctx context.Context) ([]ToolProposal, error)
	SimulateToolProposal(ctx context.Context, id string) (*SimulationResult, error)

	ConsensusVotes(ctx context.Context, commitHash string) ([]VoteDetail, error)
	SubmitOverride(ctx context.Context, override StrategicOverride) (*OverrideResult, error)

	MemoryStats(ctx context.Context) (*MemoryStats, error)
	TopicHeatMap(ctx context.Context) (*TopicHeatMap, error)
	PruneTopic(ctx context.Context, topic string) (*PruneResult, error)

	MeshHealth(ctx context.Context) (*MeshHealthReport, error)
	NetworkTopology(ctx context.Context) (*NetworkTopology, error)

	PauseSystem(ctx context.Context) error
	ResumeSystem(ctx context.Context) error
	PauseStatus(ctx context.Context) (*PauseStatus, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

func NewClient(baseURL string, logg *logger.Logger) Client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
		log:        logg.With("service", "OrchestratorClient"),
	}
}

// doJSON performs one call with a bounded retry on retryable failures
// (429, 5xx, timeouts), honoring Retry-After with a jittered backoff.
func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierr.New(0, "encode_request", err)
		}
		payload = data
	}

	backoff := c.retryDelay
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return apierr.New(0, "orchestrator_unreachable", ctx.Err())
		}

		resp, err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if attempt == c.maxRetries || !httpx.IsRetryableError(err) {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Orchestrator request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return apierr.New(0, "orchestrator_unreachable", ctx.Err())
		}
		backoff *= 2
	}
}

func (c *client) doOnce(ctx context.Context, method, path string, payload []byte, out any) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apierr.New(0, "build_request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.New(0, "orchestrator_unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp, apierr.New(resp.StatusCode, "orchestrator_error",
			fmt.Errorf("%s %s: %s", method, path, strings.TrimSpace(string(snippet))))
	}
	if out == nil {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, apierr.New(resp.StatusCode, "decode_response", err)
	}
	return resp, nil
}

func (c *client) ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error) {
	var out struct {
		Tasks []ScheduledTask `json:"tasks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/scheduled-tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *client) CreateScheduledTask(ctx context.Context, task CreateScheduledTask) (*ScheduledTask, error) {
	var out struct {
		Task ScheduledTask `json:"task"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/scheduled-tasks", task, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *client) DeleteScheduledTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/scheduled-tasks/"+url.PathEscape(id), nil, nil)
}

func (c *client) SearchAgents(ctx context.Context, query string) ([]Agent, error) {
	var out struct {
		Agents []Agent `json:"agents"`
	}
	path := "/api/agents/search"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func (c *client) StationMetrics(ctx context.Context) ([]AgentStationMetrics, error) {
	var out struct {
		Stations []AgentStationMetrics `json:"stations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/phoenix/metrics/stations", nil, &out); err != nil {
		c.log.Warn("Metrics endpoint unavailable, reporting zero stations", "error", err)
		return []AgentStationMetrics{}, nil
	}
	return out.Stations, nil
}

func (c *client) GetPersona(ctx context.Context, agentID string) (*AgentPersona, error) {
	var out AgentPersona
	if err := c.doJSON(ctx, http.MethodGet, "/api/agents/"+url.PathEscape(agentID)+"/persona", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) AssignPersona(ctx context.Context, assign AssignPersona) (*AgentPersona, error) {
	var out AgentPersona
	if err := c.doJSON(ctx, http.MethodPost, "/api/agents/persona", assign, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) ListPersonas(ctx context.Context) ([]AgentPersona, error) {
	var out struct {
		Personas []AgentPersona `json:"personas"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/agents/personas", nil, &out); err != nil {
		return nil, err
	}
	return out.Personas, nil
}

func (c *client) ListToolProposals(ctx context.Context) ([]ToolProposal, error) {
	var out struct {
		Proposals []ToolProposal `json:"proposals"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/tool-proposals", nil, &out); err != nil {
		return nil, err
	}
	return out.Proposals, nil
}

func (c *client) SimulateToolProposal(ctx context.Context, id string) (*SimulationResult, error) {
	var out SimulationResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/tool-proposals/"+url.PathEscape(id)+"/simulate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) ConsensusVotes(ctx context.Context, commitHash string) ([]VoteDetail, error) {
	var out struct {
		Votes []VoteDetail `json:"votes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/consensus/votes/"+url.PathEscape(commitHash), nil, &out); err != nil {
		return nil, err
	}
	return out.Votes, nil
}

func (c *client) SubmitOverride(ctx context.Context, override StrategicOverride) (*OverrideResult, error) {
	var out OverrideResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/consensus/override", override, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) MemoryStats(ctx context.Context) (*MemoryStats, error) {
	var out MemoryStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/phoenix/memory/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) TopicHeatMap(ctx context.Context) (*TopicHeatMap, error) {
	var out TopicHeatMap
	if err := c.doJSON(ctx, http.MethodGet, "/api/phoenix/memory/heatmap", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) PruneTopic(ctx context.Context, topic string) (*PruneResult, error) {
	var out PruneResult
	body := struct {
		Topic string `json:"topic"`
	}{Topic: topic}
	if err := c.doJSON(ctx, http.MethodPost, "/api/phoenix/memory/prune", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) MeshHealth(ctx context.Context) (*MeshHealthReport, error) {
	var out MeshHealthReport
	if err := c.doJSON(ctx, http.MethodGet, "/api/network/mesh-health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) NetworkTopology(ctx context.Context) (*NetworkTopology, error) {
	var out NetworkTopology
	if err := c.doJSON(ctx, http.MethodGet, "/api/network/topology", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) PauseSystem(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/phoenix/system/pause", nil, nil)
}

func (c *client) ResumeSystem(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/phoenix/system/resume", nil, nil)
}

func (c *client) PauseStatus(ctx context.Context) (*PauseStatus, error) {
	var out PauseStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/phoenix/system/pause-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
