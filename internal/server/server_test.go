package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/models"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	resp    *models.AgentResponse
	err     error
	queries []string
	ctxErr  error
}

func (f *fakeProcessor) Process(ctx context.Context, query string) (*models.AgentResponse, error) {
	f.queries = append(f.queries, query)
	f.ctxErr = ctx.Err()
	return f.resp, f.err
}

type fakeProber map[models.Intent]callprediction.ServiceHealth

func (f fakeProber) Health(_ context.Context, intent models.Intent) callprediction.ServiceHealth {
	return f[intent]
}

type fakeWorkflow struct{ err error }

func (f fakeWorkflow) HealthCheck(context.Context) error { return f.err }

var healthyServices = fakeProber{
	models.IntentCovid: {Service: "covid", URL: "http://covid", Healthy: true},
	models.IntentChurn: {Service: "churn", URL: "http://churn", Healthy: true},
}

func newTestServer(t *testing.T, p QueryProcessor, services ServiceProber, workflow WorkflowProber) http.Handler {
	t.Helper()
	return New(Options{
		Processor: p,
		Services:  services,
		Workflow:  workflow,
		Logger:    logger.NewTestLogger(t),
	}).Handler()
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuery_Success(t *testing.T) {
	p := &fakeProcessor{resp: &models.AgentResponse{
		Response:      "France is at moderate risk.",
		Intent:        models.IntentCovid,
		Confidence:    0.5,
		ModelUsed:     "COVID-19 Prediction Model",
		RawPrediction: models.PredictionResult{"risk_score": 0.42},
	}}
	h := newTestServer(t, p, healthyServices, nil)

	rec := doRequest(h, http.MethodPost, "/api/query", `{"query": "COVID risk in France?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "France is at moderate risk.", body["response"])
	assert.Equal(t, "covid", body["intent"])
	assert.Equal(t, 0.5, body["confidence"])
	assert.Equal(t, "COVID-19 Prediction Model", body["modelUsed"])
	assert.Equal(t, map[string]interface{}{"risk_score": 0.42}, body["rawPrediction"])
	assert.Equal(t, []string{"COVID risk in France?"}, p.queries)
}

func TestQuery_ClarifyOmitsOptionalFields(t *testing.T) {
	p := &fakeProcessor{resp: &models.AgentResponse{Response: "clarify", Intent: models.IntentUnknown}}
	h := newTestServer(t, p, healthyServices, nil)

	rec := doRequest(h, http.MethodPost, "/api/query", `{"query": "hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "modelUsed")
	assert.NotContains(t, body, "rawPrediction")
	assert.Equal(t, float64(0), body["confidence"])
}

func TestQuery_InvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `query=hi`},
		{"missing query", `{}`},
		{"empty query", `{"query": ""}`},
		{"blank query", `{"query": "   "}`},
		{"wrong type", `{"query": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{}
			h := newTestServer(t, p, healthyServices, nil)

			rec := doRequest(h, http.MethodPost, "/api/query", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body struct {
				Error apperrors.StandardError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, apperrors.ErrCodeInvalidQuery, body.Error.Code)
			assert.Empty(t, p.queries)
		})
	}
}

func TestQuery_ProcessorErrors(t *testing.T) {
	p := &fakeProcessor{err: apperrors.NewInvalidQueryError("query is empty")}
	rec := doRequest(newTestServer(t, p, healthyServices, nil), http.MethodPost, "/api/query", `{"query": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p = &fakeProcessor{err: errors.New("boom")}
	rec = doRequest(newTestServer(t, p, healthyServices, nil), http.MethodPost, "/api/query", `{"query": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperrors.ErrCodeInternal))
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	rec := doRequest(newTestServer(t, &fakeProcessor{}, healthyServices, nil), http.MethodGet, "/api/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQuery_CancelledRequestPropagates(t *testing.T) {
	p := &fakeProcessor{resp: &models.AgentResponse{Response: "x", Intent: models.IntentUnknown}}
	h := newTestServer(t, p, healthyServices, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "hi"}`)).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.ErrorIs(t, p.ctxErr, context.Canceled)
}

func TestRequestID_Echoed(t *testing.T) {
	h := newTestServer(t, &fakeProcessor{}, healthyServices, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestServer(t, &fakeProcessor{}, healthyServices, nil), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		services   fakeProber
		workflow   WorkflowProber
		wantCode   int
		wantStatus string
	}{
		{"all healthy", healthyServices, nil, http.StatusOK, StatusReady},
		{
			name: "churn down",
			services: fakeProber{
				models.IntentCovid: {Service: "covid", Healthy: true},
				models.IntentChurn: {Service: "churn", Error: "status 503"},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDegraded,
		},
		{"workflow healthy", healthyServices, fakeWorkflow{}, http.StatusOK, StatusReady},
		{"workflow down", healthyServices, fakeWorkflow{err: errors.New("no brokers")}, http.StatusServiceUnavailable, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(newTestServer(t, &fakeProcessor{}, tt.services, tt.workflow), http.MethodGet, "/ready", "")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body ReadyStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			require.Len(t, body.Services, 2)
			assert.Equal(t, "covid", body.Services[0].Service)
			assert.Equal(t, "churn", body.Services[1].Service)
			assert.Equal(t, tt.workflow != nil, body.Workflow != nil)
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := doRequest(newTestServer(t, &fakeProcessor{}, healthyServices, nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestServer(t, &fakeProcessor{}, healthyServices, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
