// internal/workers/agent/synthesize-response/models.go
package synthesizeresponse

import "mlops-agent/internal/models"

type Input struct {
	Intent     models.Intent           `json:"intent"`
	Prediction models.PredictionResult `json:"prediction"`
}

type Output struct {
	Response       string `json:"response"`
	CompletionUsed bool   `json:"completionUsed"`
}
