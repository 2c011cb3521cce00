package feeds

import (
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// TelemetryMetrics mirrors the telemetry service's periodic "metrics" event.
type TelemetryMetrics struct {
	TsMs         uint64  `json:"ts_ms"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemTotal     uint64  `json:"mem_total"`
	MemUsed      uint64  `json:"mem_used"`
	MemFree      uint64  `json:"mem_free"`
	ProcessCount int     `json:"process_count"`
}

// NewTelemetryFeed tails the telemetry service's metrics/media stream.
func NewTelemetryFeed(baseURL string, opts StreamOptions, logg *logger.Logger) *Stream {
	return NewStream("telemetry", baseURL+"/api/telemetry/stream", opts, logg)
}
