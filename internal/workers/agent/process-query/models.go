// internal/workers/agent/process-query/models.go
package processquery

import "mlops-agent/internal/models"

type Input struct {
	Query string `json:"query"`
}

// Output is the AgentResponse itself, so a workflow sees the same variables
// as an API caller.
type Output = models.AgentResponse
