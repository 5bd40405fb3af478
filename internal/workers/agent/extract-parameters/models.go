// internal/workers/agent/extract-parameters/models.go
package extractparameters

import "mlops-agent/internal/models"

type Input struct {
	Query  string        `json:"query"`
	Intent models.Intent `json:"intent"`
}

type Output struct {
	Parameters models.ParameterSet `json:"parameters"`
	// FallbackFields lists the fields recovered by pattern matching.
	FallbackFields []string `json:"fallbackFields,omitempty"`
	// CompletionUsed is false when the completion call failed or returned
	// nothing parsable.
	CompletionUsed bool `json:"completionUsed"`
}
