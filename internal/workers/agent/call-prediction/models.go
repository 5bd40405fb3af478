// internal/workers/agent/call-prediction/models.go
package callprediction

import "mlops-agent/internal/models"

type Input struct {
	Intent     models.Intent       `json:"intent"`
	Parameters models.ParameterSet `json:"parameters"`
}

type Output struct {
	Prediction models.PredictionResult `json:"prediction"`
}

// ServiceHealth is the readiness view of one prediction service.
type ServiceHealth struct {
	Service string `json:"service"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}
