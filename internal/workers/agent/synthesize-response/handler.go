// internal/workers/agent/synthesize-response/handler.go
package synthesizeresponse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mlops-agent/internal/common/camunda"
	"mlops-agent/internal/common/completion"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "synthesize-response"

	MsgEmptySynthesis  = "Unable to synthesize response"
	MsgSynthesisFailed = "I encountered an error while generating the response. Please try again."
)

const systemInstruction = "You are an MLOps assistant who explains machine learning predictions to business users. " +
	"Answer in plain language, in a few short paragraphs, using only the prediction data you are given."

type Handler struct {
	config     *Config
	completion completion.Client
	logger     logger.Logger
}

func NewHandler(config *Config, client completion.Client, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:     config,
		completion: client,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, h.logger)
}

// ErrorResponse is the text returned for a prediction that carries an error.
func ErrorResponse(message string) string {
	return "I encountered an error: " + message
}

// Execute narrates a PredictionResult. Every failure degrades to a fixed
// message, so the returned error is always nil.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if msg, ok := input.Prediction.ErrorMessage(); ok {
		h.logger.Warn("prediction carries an error, skipping narration", map[string]interface{}{
			"intent": input.Intent,
			"error":  msg,
		})
		return &Output{Response: ErrorResponse(msg)}, nil
	}

	if h.completion == nil {
		return &Output{Response: MsgSynthesisFailed}, nil
	}

	text, err := h.completion.Complete(ctx, []completion.Message{
		completion.SystemMessage(systemInstruction),
		completion.UserMessage(buildPrompt(input.Intent, input.Prediction)),
	})
	if err != nil {
		h.logger.Error("synthesis failed", map[string]interface{}{
			"intent": input.Intent,
			"error":  apperrors.NewSynthesisFailedError(err),
		})
		return &Output{Response: MsgSynthesisFailed}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		h.logger.Warn("completion returned no content", map[string]interface{}{"intent": input.Intent})
		return &Output{Response: MsgEmptySynthesis, CompletionUsed: true}, nil
	}

	h.logger.Info("response synthesized", map[string]interface{}{
		"intent": input.Intent,
		"length": len(text),
	})
	return &Output{Response: text, CompletionUsed: true}, nil
}

func buildPrompt(intent models.Intent, prediction models.PredictionResult) string {
	var parts []string

	predictionJSON, _ := json.MarshalIndent(prediction, "", "  ")

	switch intent {
	case models.IntentCovid:
		parts = append(parts, "Explain this COVID-19 risk prediction for a country:")
		parts = append(parts, string(predictionJSON))
		parts = append(parts, "\nInstructions:")
		parts = append(parts, "- State the risk level and how confident the model is")
		parts = append(parts, "- Summarize the explanation in your own words")
		parts = append(parts, "- Finish with practical public-health recommendations")
	default:
		parts = append(parts, "Explain this telco customer churn prediction:")
		parts = append(parts, string(predictionJSON))
		parts = append(parts, "\nInstructions:")
		parts = append(parts, "- State the churn probability and whether the customer is likely to leave")
		parts = append(parts, "- List the key risk factors, if any")
		parts = append(parts, "- Finish with concrete retention actions")
	}

	parts = append(parts, "- Express probabilities and scores as percentages")
	parts = append(parts, "\nAnswer:")
	return strings.Join(parts, "\n")
}
