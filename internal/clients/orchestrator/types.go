package orchestrator

import "encoding/json"

// Payload shapes for the orchestrator REST surface. Field names are
// snake_case on the wire, matching the cluster's serializers.

type ScheduledTask struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CronExpression string          `json:"cron_expression"`
	AgentID        string          `json:"agent_id,omitempty"`
	TaskPayload    json.RawMessage `json:"task_payload"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
	LastRun        *string         `json:"last_run,omitempty"`
	NextRun        *string         `json:"next_run,omitempty"`
}

type CreateScheduledTask struct {
	Name           string          `json:"name"`
	CronExpression string          `json:"cron_expression"`
	AgentID        string          `json:"agent_id,omitempty"`
	TaskPayload    json.RawMessage `json:"task_payload,omitempty"`
}

type Agent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Mission   string `json:"mission,omitempty"`
}

type AgentStationMetrics struct {
	AgentID            string  `json:"agent_id"`
	AgentName          string  `json:"agent_name"`
	ReasoningLoad      float64 `json:"reasoning_load"`
	DriftFrequency     float64 `json:"drift_frequency"`
	CapabilityScore    float64 `json:"capability_score"`
	ActiveTasks        int     `json:"active_tasks"`
	LastDriftTimestamp *string `json:"last_drift_timestamp,omitempty"`
}

type BehavioralBias struct {
	RiskTolerance float64 `json:"risk_tolerance"`
	Thoroughness  float64 `json:"thoroughness"`
	Urgency       float64 `json:"urgency"`
}

type AgentPersona struct {
	AgentID        string         `json:"agent_id"`
	Name           string         `json:"name"`
	BehavioralBias BehavioralBias `json:"behavioral_bias"`
	VoiceTone      string         `json:"voice_tone"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

type AssignPersona struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	VoiceTone string `json:"voice_tone,omitempty"`
}

type ToolProposal struct {
	ID                  string  `json:"id"`
	AgentID             string  `json:"agent_id"`
	AgentName           string  `json:"agent_name"`
	Repository          string  `json:"repository"`
	ToolName            string  `json:"tool_name"`
	Description         string  `json:"description"`
	GithubURL           string  `json:"github_url"`
	Stars               uint32  `json:"stars"`
	Language            *string `json:"language,omitempty"`
	InstallationCommand string  `json:"installation_command"`
	CodeSnippet         string  `json:"code_snippet"`
	Status              string  `json:"status"`
	CreatedAt           string  `json:"created_at"`
	ReviewedAt          *string `json:"reviewed_at,omitempty"`
	InstallationSuccess *bool   `json:"installation_success,omitempty"`
	Verified            *bool   `json:"verified,omitempty"`
	VerificationMessage *string `json:"verification_message,omitempty"`
}

type SimulationResult struct {
	ProposalID string `json:"proposal_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
}

type VoteDetail struct {
	NodeID          string  `json:"node_id"`
	ComplianceScore float64 `json:"compliance_score"`
	Approved        bool    `json:"approved"`
	Timestamp       string  `json:"timestamp"`
}

type StrategicOverride struct {
	CommitHash string `json:"commit_hash"`
	Rationale  string `json:"rationale"`
}

type OverrideResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type MemoryStats struct {
	BytesTransferred24h   uint64 `json:"bytes_transferred_24h"`
	FragmentsExchanged24h int    `json:"fragments_exchanged_24h"`
	ActiveTransfers       int    `json:"active_transfers"`
	TotalNodes            int    `json:"total_nodes"`
}

type TopicHeatMap struct {
	TopicFrequencies map[string]int `json:"topic_frequencies"`
	NodeVolumes      map[string]int `json:"node_volumes"`
}

type PruneResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

type MeshHealthReport struct {
	TotalNodes               uint32  `json:"total_nodes"`
	AlignedNodes             uint32  `json:"aligned_nodes"`
	QuarantinedNodes         uint32  `json:"quarantined_nodes"`
	AlignmentDriftPercentage float64 `json:"alignment_drift_percentage"`
	LastUpdatedUTC           string  `json:"last_updated_utc"`
}

type TopologyNode struct {
	ID              string `json:"id"`
	NodeID          string `json:"node_id"`
	Status          string `json:"status"`
	SoftwareVersion string `json:"software_version"`
	RemoteAddress   string `json:"remote_address"`
	LastSeen        string `json:"last_seen"`
}

type TopologyLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type NetworkTopology struct {
	Nodes []TopologyNode `json:"nodes"`
	Links []TopologyLink `json:"links"`
}

type PauseStatus struct {
	Paused bool `json:"paused"`
}
