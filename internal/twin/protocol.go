package twin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagi-labs/operator-console/internal/attribution"
)

// Wire shapes for the digital-twin chat protocol. Frames are JSON objects
// tagged by "type"; field names are snake_case on the wire.

const (
	frameCompleteMessage = "complete_message"
	frameMessageChunk    = "message_chunk"
	frameStatusUpdate    = "status_update"
)

// ChatRequest is the outbound operator turn. Generation knobs are optional
// and omitted when unset.
type ChatRequest struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	MediaActive *bool     `json:"media_active,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	MaxMemory   *int      `json:"max_memory,omitempty"`
}

// AgentCommand is a structured instruction from the agent back to the UI,
// tagged by "command".
type AgentCommand struct {
	Command   string          `json:"command"`
	MemoryID  string          `json:"memory_id,omitempty"`
	Query     string          `json:"query,omitempty"`
	ConfigKey string          `json:"config_key,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// inboundFrame is the superset of the three tagged variants; Type decides
// which fields are meaningful.
type inboundFrame struct {
	Type string `json:"type"`

	// complete_message
	ID             string              `json:"id"`
	Content        string              `json:"content"`
	IsFinal        bool                `json:"is_final"`
	LatencyMs      uint64              `json:"latency_ms"`
	SourceMemories []string            `json:"source_memories"`
	IssuedCommand  *AgentCommand       `json:"issued_command,omitempty"`
	Attribution    *attribution.Vector `json:"attribution,omitempty"`

	// message_chunk (shares id / is_final)
	ContentChunk string `json:"content_chunk"`

	// status_update
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Message is a coherent agent turn after framing: either a complete_message
// as received, or the running (and finally sealed) reassembly of a chunked
// turn. Streamed marks reassembled turns.
type Message struct {
	ID             string              `json:"id"`
	Content        string              `json:"content"`
	Final          bool                `json:"final"`
	Streamed       bool                `json:"streamed,omitempty"`
	LatencyMs      uint64              `json:"latency_ms,omitempty"`
	SourceMemories []string            `json:"source_memories,omitempty"`
	IssuedCommand  *AgentCommand       `json:"issued_command,omitempty"`
	Attribution    *attribution.Vector `json:"attribution,omitempty"`
}

func parseFrame(data []byte) (*inboundFrame, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case frameCompleteMessage, frameMessageChunk, frameStatusUpdate:
		return &f, nil
	default:
		return nil, fmt.Errorf("unrecognized frame type %q", f.Type)
	}
}
