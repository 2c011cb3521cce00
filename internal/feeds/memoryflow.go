package feeds

import (
	"encoding/json"
	"strings"

	"github.com/pagi-labs/operator-console/internal/attribution"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// Named events carried on the orchestrator's phoenix stream.
const (
	EventMemoryTransfer    = "memory_transfer"
	EventConsensusVote     = "consensus_vote"
	EventConsensusResult   = "consensus_result"
	EventQuarantineAlert   = "quarantine_alert"
	EventKnowledgeIngested = "knowledge_ingested"
)

// MemoryTransfer is one memory-exchange hop between mesh nodes.
type MemoryTransfer struct {
	SourceNode       string `json:"source_node"`
	DestinationNode  string `json:"destination_node"`
	Topic            string `json:"topic"`
	FragmentsCount   int    `json:"fragments_count"`
	BytesTransferred uint64 `json:"bytes_transferred"`
	RedactedEntities int    `json:"redacted_entities_count"`
	Timestamp        string `json:"timestamp"`
}

// ConsensusVote is one node's vote on a pending decision.
type ConsensusVote struct {
	CommitHash      string  `json:"commit_hash"`
	VotingNode      string  `json:"voting_node"`
	ComplianceScore float64 `json:"compliance_score"`
	Approved        bool    `json:"approved"`
	Timestamp       string  `json:"timestamp"`
}

type knowledgeIngestedEvent struct {
	Domain string `json:"domain"`
}

// NewMemoryFlowFeed tails the orchestrator's phoenix stream. Completed
// knowledge-base ingestions bump the aggregator's per-domain counters; every
// other named event only lands in the retained window.
func NewMemoryFlowFeed(baseURL string, opts StreamOptions, agg *attribution.Aggregator, logg *logger.Logger) *Stream {
	log := logg.With("feed", "memory_flow")
	inner := opts.Handler
	opts.Handler = func(event string, data json.RawMessage) {
		if event == EventKnowledgeIngested && agg != nil {
			var payload knowledgeIngestedEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				log.Warn("Dropping malformed ingestion event", "error", err)
			} else {
				agg.RecordIngestion(attribution.Domain(strings.ToLower(payload.Domain)))
			}
		}
		if inner != nil {
			inner(event, data)
		}
	}
	return NewStream("memory_flow", baseURL+"/api/phoenix/stream", opts, logg)
}
