// internal/workers/agent/call-prediction/handler.go
package callprediction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mlops-agent/internal/common/camunda"
	apperrors "mlops-agent/internal/common/errors"
	httpclient "mlops-agent/internal/common/http"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/metrics"
	"mlops-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "call-prediction"

	MsgCovidFailed = "Failed to get COVID prediction"
	MsgChurnFailed = "Failed to get churn prediction"
)

type Handler struct {
	config *Config
	client *httpclient.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout),
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

// Execute posts the ParameterSet to the intent's prediction service. Upstream
// failures are returned as a PredictionResult carrying only an error message.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	service, baseURL, failMsg, err := h.route(input.Intent)
	if err != nil {
		return nil, err
	}
	if len(input.Parameters) == 0 {
		return nil, apperrors.NewInvalidQueryError("parameter set is empty")
	}

	url := strings.TrimRight(baseURL, "/") + "/predict/" + service

	start := time.Now()
	var result models.PredictionResult
	err = h.client.PostJSON(ctx, url, input.Parameters, &result)
	metrics.PredictionDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if err == nil && result == nil {
		err = errors.New("empty response body")
	}
	if err != nil {
		reason := failureReason(err)
		metrics.PredictionFailures.WithLabelValues(service, reason).Inc()
		h.logger.Warn("prediction call failed", map[string]interface{}{
			"service": service,
			"url":     url,
			"reason":  reason,
			"error":   err,
		})
		return &Output{Prediction: models.NewPredictionError(failMsg)}, nil
	}

	h.logger.Info("prediction received", map[string]interface{}{
		"service":    service,
		"fieldCount": len(result),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return &Output{Prediction: result}, nil
}

// Health calls GET {base}/health on the service behind intent.
func (h *Handler) Health(ctx context.Context, intent models.Intent) ServiceHealth {
	service, baseURL, _, err := h.route(intent)
	if err != nil {
		return ServiceHealth{Service: string(intent), Error: err.Error()}
	}

	status := ServiceHealth{Service: service, URL: baseURL}
	if err := h.client.GetJSON(ctx, strings.TrimRight(baseURL, "/")+"/health", nil); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

func (h *Handler) route(intent models.Intent) (service, baseURL, failMsg string, err error) {
	switch intent {
	case models.IntentCovid:
		return "covid", h.config.CovidURL, MsgCovidFailed, nil
	case models.IntentChurn:
		return "churn", h.config.ChurnURL, MsgChurnFailed, nil
	}
	return "", "", "", apperrors.NewInvalidQueryError(fmt.Sprintf("no prediction service for intent %q", intent))
}

func failureReason(err error) string {
	var statusErr *httpclient.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.StatusCode)
	case strings.Contains(err.Error(), "decode response"), strings.Contains(err.Error(), "empty response"):
		return "decode"
	default:
		return "transport"
	}
}
