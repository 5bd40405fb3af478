// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Server     ServerConfig            `mapstructure:"server"`
	Agent      AgentConfig             `mapstructure:"agent"`
	Services   ServicesConfig          `mapstructure:"services"`
	Completion CompletionConfig        `mapstructure:"completion"`
	Cache      CacheConfig             `mapstructure:"cache"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AgentConfig holds the routing constants of the query pipeline.
type AgentConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// ServicesConfig points at the two prediction microservices.
type ServicesConfig struct {
	CovidURL string `mapstructure:"covid_url"`
	ChurnURL string `mapstructure:"churn_url"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// CompletionConfig selects and tunes the text-completion backend.
type CompletionConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | gemini
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// CacheConfig controls the optional response cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Summary returns a loggable view of the configuration without secrets.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"environment":                c.App.Environment,
		"completionProvider":         c.Completion.Provider,
		"completionModel":            c.Completion.Model,
		"covidServiceURL":            c.Services.CovidURL,
		"churnServiceURL":            c.Services.ChurnURL,
		"intentConfidenceThreshold":  c.Agent.ConfidenceThreshold,
		"requestTimeoutMs":           c.Services.Timeout,
		"cacheEnabled":               c.Cache.Enabled,
		"camundaEnabled":             c.Camunda.Enabled,
		"completionAPIKeyConfigured": c.Completion.APIKey != "",
	}
}
