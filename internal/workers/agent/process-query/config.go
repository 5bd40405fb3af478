// internal/workers/agent/process-query/config.go
package processquery

import (
	"time"

	"mlops-agent/internal/common/config"
)

type Config struct {
	// ConfidenceThreshold is the minimum classifier confidence for routing a
	// query to a prediction service.
	ConfidenceThreshold float64
	// Timeout bounds a whole job when run as a workflow task.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		Timeout:             2 * time.Minute,
	}
}

// FromAgent builds the orchestrator configuration from the agent section.
func FromAgent(cfg config.AgentConfig) *Config {
	c := LoadConfig()
	if cfg.ConfidenceThreshold > 0 {
		c.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	return c
}
