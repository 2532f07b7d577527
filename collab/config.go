package collab

import "time"

// Config configures the collaboration service.
type Config struct {
	// HistoryMaxDepth bounds each undo/redo stack per scene (default: 100).
	HistoryMaxDepth int `json:"history_max_depth" yaml:"history_max_depth"`

	// ExportTimeout is how long an export request waits for a peer to
	// answer before rejecting (default: 30s).
	ExportTimeout time.Duration `json:"export_timeout" yaml:"export_timeout"`
}

func (c *Config) defaults() {
	if c.HistoryMaxDepth <= 0 {
		c.HistoryMaxDepth = 100
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 30 * time.Second
	}
}
