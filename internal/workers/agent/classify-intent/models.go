// internal/workers/agent/classify-intent/models.go
package classifyintent

import "mlops-agent/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Intent     models.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
	CovidHits  int           `json:"covidHits"`
	ChurnHits  int           `json:"churnHits"`
}
