package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/models"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"
)

const maxBodyBytes = 1 << 20

const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
)

// ReadyStatus is returned by the readiness endpoint.
type ReadyStatus struct {
	Status    string                         `json:"status"`
	Timestamp string                         `json:"timestamp"`
	Services  []callprediction.ServiceHealth `json:"services"`
	Workflow  *WorkflowHealth                `json:"workflow,omitempty"`
}

type WorkflowHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidQueryError("unreadable body"))
		return
	}

	if result := s.validator.ValidateJSON(body); !result.Valid {
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidQueryError(strings.Join(result.GetErrorMessages(), "; ")))
		return
	}

	var req models.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewInvalidQueryError(err.Error()))
		return
	}

	resp, err := s.opts.Processor.Process(r.Context(), req.Query)
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		status := http.StatusInternalServerError
		if stdErr.Code == apperrors.ErrCodeInvalidQuery {
			status = http.StatusBadRequest
		}
		s.requestLogger(r).Error("query failed", map[string]interface{}{"error": stdErr})
		writeError(w, status, stdErr)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ProbeTimeout)
	defer cancel()

	intents := []models.Intent{models.IntentCovid, models.IntentChurn}
	status := ReadyStatus{
		Status:   StatusReady,
		Services: make([]callprediction.ServiceHealth, len(intents)),
	}

	var wg sync.WaitGroup
	for i, intent := range intents {
		wg.Add(1)
		go func(i int, intent models.Intent) {
			defer wg.Done()
			status.Services[i] = s.opts.Services.Health(ctx, intent)
		}(i, intent)
	}

	if s.opts.Workflow != nil {
		status.Workflow = &WorkflowHealth{Healthy: true}
		if err := s.opts.Workflow.HealthCheck(ctx); err != nil {
			status.Workflow = &WorkflowHealth{Error: err.Error()}
		}
	}
	wg.Wait()

	for _, svc := range status.Services {
		if !svc.Healthy {
			status.Status = StatusDegraded
		}
	}
	if status.Workflow != nil && !status.Workflow.Healthy {
		status.Status = StatusDegraded
	}
	status.Timestamp = time.Now().UTC().Format(time.RFC3339)

	code := http.StatusOK
	if status.Status != StatusReady {
		code = http.StatusServiceUnavailable
		s.requestLogger(r).Warn("not ready", map[string]interface{}{"services": status.Services})
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *apperrors.StandardError) {
	writeJSON(w, status, map[string]interface{}{"error": err})
}
