// internal/workers/agent/process-query/handler.go
package processquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mlops-agent/internal/cache"
	"mlops-agent/internal/common/camunda"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/metrics"
	"mlops-agent/internal/common/observability"
	"mlops-agent/internal/models"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"
	classifyintent "mlops-agent/internal/workers/agent/classify-intent"
	extractparameters "mlops-agent/internal/workers/agent/extract-parameters"
	synthesizeresponse "mlops-agent/internal/workers/agent/synthesize-response"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskType = "process-query"

	MsgClarify = "I'm not sure if you're asking about COVID-19 or customer churn. Could you please clarify?"

	MsgNeedCovidInfo = "I need more information about the country to make a COVID-19 prediction. " +
		"Please provide country name and relevant statistics."
	MsgNeedChurnInfo = "I need more information about the customer to assess churn risk. " +
		"Please provide customer ID and relevant details."

	DefaultCountryName = "Unknown"
	guestIDPrefix      = "GUEST_"
)

// Outcomes recorded per query.
const (
	OutcomeAnswered        = "answered"
	OutcomeClarify         = "clarify"
	OutcomeNeedMoreInfo    = "need_more_info"
	OutcomePredictionError = "prediction_error"
	OutcomeCacheHit        = "cache_hit"
)

// Stages are the pipeline steps the orchestrator drives. Cache and
// Observability are optional.
type Stages struct {
	Classifier    *classifyintent.Handler
	Extractor     *extractparameters.Handler
	Predictor     *callprediction.Handler
	Synthesizer   *synthesizeresponse.Handler
	Cache         cache.ResponseCache
	Observability *observability.Observability
}

type Handler struct {
	config *Config
	stages Stages
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, stages Stages, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		stages: stages,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		now: time.Now,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.Process(ctx, input.Query)
}

// Process runs one query through the pipeline and returns exactly one
// AgentResponse. The only error is a blank query; every downstream failure
// is turned into a response.
func (h *Handler) Process(ctx context.Context, query string) (*models.AgentResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidQueryError("query is empty")
	}

	start := time.Now()
	ctx, span := h.stages.Observability.StartSpan(ctx, "agent.process_query")
	defer span.End()

	h.logger.Debug("query received", map[string]interface{}{"query": query})

	resp, outcome := h.process(ctx, query)

	span.SetAttributes(
		attribute.String("agent.intent", string(resp.Intent)),
		attribute.Float64("agent.confidence", resp.Confidence),
		attribute.String("agent.outcome", outcome),
	)
	if outcome == OutcomePredictionError {
		span.SetStatus(codes.Error, outcome)
	}

	metrics.QueriesTotal.WithLabelValues(string(resp.Intent), outcome).Inc()
	h.stages.Observability.RecordQueryProcessed(ctx, string(resp.Intent), outcome)
	h.stages.Observability.RecordQueryDuration(ctx, time.Since(start), string(resp.Intent))

	h.logger.Info("query answered", map[string]interface{}{
		"intent":     resp.Intent,
		"confidence": resp.Confidence,
		"outcome":    outcome,
		"modelUsed":  resp.ModelUsed,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

func (h *Handler) process(ctx context.Context, query string) (*models.AgentResponse, string) {
	classified, err := h.classify(ctx, query)
	if err != nil || !classified.Intent.Routable() || classified.Confidence < h.config.ConfidenceThreshold {
		return &models.AgentResponse{Response: MsgClarify, Intent: models.IntentUnknown}, OutcomeClarify
	}

	intent, confidence := classified.Intent, classified.Confidence

	if h.stages.Cache != nil {
		if cached, ok := h.stages.Cache.Get(ctx, intent, query); ok {
			return cached, OutcomeCacheHit
		}
	}

	params, err := h.extract(ctx, query, intent)
	if err != nil || len(params) == 0 {
		return &models.AgentResponse{
			Response:   needMoreInfo(intent),
			Intent:     intent,
			Confidence: confidence,
		}, OutcomeNeedMoreInfo
	}

	// A generated guest id is per request and must not be replayed from cache.
	guest := intent == models.IntentChurn && !params.Has(models.FieldCustomerID)
	params = h.withDefaults(intent, params)

	prediction, err := h.predict(ctx, intent, params)
	if err != nil {
		prediction = models.NewPredictionError(predictionFailed(intent))
	}

	text := h.synthesize(ctx, intent, prediction)

	resp := &models.AgentResponse{
		Response:      text,
		Intent:        intent,
		Confidence:    confidence,
		ModelUsed:     intent.ModelLabel(),
		RawPrediction: prediction,
	}

	if _, failed := prediction.ErrorMessage(); failed {
		return resp, OutcomePredictionError
	}

	if h.stages.Cache != nil && !guest {
		h.stages.Cache.Set(ctx, intent, query, resp)
	}
	return resp, OutcomeAnswered
}

func (h *Handler) classify(ctx context.Context, query string) (*classifyintent.Output, error) {
	ctx, span := h.stages.Observability.StartSpan(ctx, "agent.classify")
	defer span.End()

	out, err := h.stages.Classifier.Execute(ctx, &classifyintent.Input{Query: query})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("agent.intent", string(out.Intent)),
		attribute.Float64("agent.confidence", out.Confidence),
	)
	return out, nil
}

func (h *Handler) extract(ctx context.Context, query string, intent models.Intent) (models.ParameterSet, error) {
	ctx, span := h.stages.Observability.StartSpan(ctx, "agent.extract", attribute.String("agent.intent", string(intent)))
	defer span.End()

	out, err := h.stages.Extractor.Execute(ctx, &extractparameters.Input{Query: query, Intent: intent})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("agent.parameter_count", len(out.Parameters)),
		attribute.Bool("agent.completion_used", out.CompletionUsed),
	)
	return out.Parameters, nil
}

func (h *Handler) predict(ctx context.Context, intent models.Intent, params models.ParameterSet) (models.PredictionResult, error) {
	ctx, span := h.stages.Observability.StartSpan(ctx, "agent.predict", attribute.String("agent.intent", string(intent)))
	defer span.End()

	out, err := h.stages.Predictor.Execute(ctx, &callprediction.Input{Intent: intent, Parameters: params})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if msg, failed := out.Prediction.ErrorMessage(); failed {
		span.SetStatus(codes.Error, msg)
	}
	return out.Prediction, nil
}

func (h *Handler) synthesize(ctx context.Context, intent models.Intent, prediction models.PredictionResult) string {
	ctx, span := h.stages.Observability.StartSpan(ctx, "agent.synthesize", attribute.String("agent.intent", string(intent)))
	defer span.End()

	out, err := h.stages.Synthesizer.Execute(ctx, &synthesizeresponse.Input{Intent: intent, Prediction: prediction})
	if err != nil {
		span.RecordError(err)
		return synthesizeresponse.MsgSynthesisFailed
	}
	span.SetAttributes(attribute.Bool("agent.completion_used", out.CompletionUsed))
	return out.Response
}

// withDefaults returns a copy of params carrying the identity field each
// prediction service requires.
func (h *Handler) withDefaults(intent models.Intent, params models.ParameterSet) models.ParameterSet {
	out := params.Clone()
	switch intent {
	case models.IntentCovid:
		if !out.Has(models.FieldCountryName) {
			out[models.FieldCountryName] = DefaultCountryName
		}
	case models.IntentChurn:
		if !out.Has(models.FieldCustomerID) {
			out[models.FieldCustomerID] = fmt.Sprintf("%s%d", guestIDPrefix, h.now().UnixMilli())
		}
	}
	return out
}

func predictionFailed(intent models.Intent) string {
	if intent == models.IntentCovid {
		return callprediction.MsgCovidFailed
	}
	return callprediction.MsgChurnFailed
}

func needMoreInfo(intent models.Intent) string {
	if intent == models.IntentCovid {
		return MsgNeedCovidInfo
	}
	return MsgNeedChurnInfo
}
