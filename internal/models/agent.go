// internal/models/agent.go
package models

// QueryRequest is the inbound payload of the query operation.
type QueryRequest struct {
	Query string `json:"query"`
}

// AgentResponse is returned exactly once per query.
type AgentResponse struct {
	Response      string           `json:"response"`
	Intent        Intent           `json:"intent"`
	Confidence    float64          `json:"confidence"`
	ModelUsed     string           `json:"modelUsed,omitempty"`
	RawPrediction PredictionResult `json:"rawPrediction,omitempty"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
