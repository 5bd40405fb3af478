// internal/workers/agent/classify-intent/handler.go
package classifyintent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"mlops-agent/internal/common/camunda"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "classify-intent"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidQueryError(fmt.Sprintf("parse input: %v", err)), h.logger)
		return
	}

	output, err := h.Execute(context.Background(), &input)
	if err != nil {
		camunda.FailJob(client, job, err, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, h.logger)
}

// Execute classifies input.Query. It never fails for a non-empty query.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, apperrors.NewInvalidQueryError("query is empty")
	}

	out := h.classify(input.Query)

	h.logger.Info("intent classified", map[string]interface{}{
		"intent":     out.Intent,
		"confidence": out.Confidence,
		"covidHits":  out.CovidHits,
		"churnHits":  out.ChurnHits,
	})
	return out, nil
}

func (h *Handler) classify(query string) *Output {
	lower := strings.ToLower(query)
	covid := countHits(lower, h.config.CovidKeywords)
	churn := countHits(lower, h.config.ChurnKeywords)

	out := &Output{
		Intent:    models.IntentUnknown,
		CovidHits: covid,
		ChurnHits: churn,
	}

	switch {
	case covid > churn && covid > 0:
		out.Intent = models.IntentCovid
		out.Confidence = score(covid, covid, churn)
	case churn > 0:
		out.Intent = models.IntentChurn
		out.Confidence = score(churn, covid, churn)
	}
	return out
}

// Classify runs the keyword classifier with the default keyword lists.
func Classify(query string) (models.Intent, float64) {
	out := (&Handler{config: LoadConfig()}).classify(query)
	return out.Intent, out.Confidence
}

// score is winner/(covid+churn+1), capped at 1.0.
func score(winner, covid, churn int) float64 {
	return math.Min(float64(winner)/float64(covid+churn+1), 1.0)
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
