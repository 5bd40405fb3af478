// internal/workers/agent/call-prediction/config.go
package callprediction

import (
	"time"

	"mlops-agent/internal/common/config"
)

type Config struct {
	CovidURL string
	ChurnURL string
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		CovidURL: config.DefaultCovidServiceURL,
		ChurnURL: config.DefaultChurnServiceURL,
		Timeout:  config.GetDuration(config.DefaultServiceTimeout),
	}
}

// FromServices builds the gateway configuration from the services section.
func FromServices(cfg config.ServicesConfig) *Config {
	c := LoadConfig()
	if cfg.CovidURL != "" {
		c.CovidURL = cfg.CovidURL
	}
	if cfg.ChurnURL != "" {
		c.ChurnURL = cfg.ChurnURL
	}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	return c
}
