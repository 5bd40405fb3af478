// internal/workers/agent/process-query/handler_test.go
package processquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mlops-agent/internal/cache"
	"mlops-agent/internal/common/completion"
	"mlops-agent/internal/common/config"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/observability"
	"mlops-agent/internal/models"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"
	classifyintent "mlops-agent/internal/workers/agent/classify-intent"
	extractparameters "mlops-agent/internal/workers/agent/extract-parameters"
	synthesizeresponse "mlops-agent/internal/workers/agent/synthesize-response"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// scriptedCompletion answers calls in order with the configured replies.
type scriptedCompletion struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (s *scriptedCompletion) Complete(_ context.Context, _ []completion.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > len(s.replies) {
		return "", completion.ErrCompletionFailed
	}
	return s.replies[s.calls-1], nil
}

func (s *scriptedCompletion) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type predictionStub struct {
	server *httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	last   models.ParameterSet
}

func newPredictionStub(t *testing.T, delay time.Duration, body map[string]interface{}) *predictionStub {
	t.Helper()
	stub := &predictionStub{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.hits.Add(1)
		var params models.ParameterSet
		_ = json.NewDecoder(r.Body).Decode(&params)
		stub.mu.Lock()
		stub.last = params
		stub.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (p *predictionStub) LastParams() models.ParameterSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

type pipelineOptions struct {
	gatewayTimeout time.Duration
	threshold      float64
	cache          cache.ResponseCache
	obs            *observability.Observability
}

func newPipeline(t *testing.T, llm completion.Client, covidURL, churnURL string, opts pipelineOptions) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)

	gateway := callprediction.LoadConfig()
	gateway.CovidURL = covidURL
	gateway.ChurnURL = churnURL
	if opts.gatewayTimeout > 0 {
		gateway.Timeout = opts.gatewayTimeout
	}

	cfg := LoadConfig()
	if opts.threshold > 0 {
		cfg.ConfidenceThreshold = opts.threshold
	}

	h := NewHandler(cfg, Stages{
		Classifier:    classifyintent.NewHandler(nil, log),
		Extractor:     extractparameters.NewHandler(nil, llm, log),
		Predictor:     callprediction.NewHandler(gateway, log),
		Synthesizer:   synthesizeresponse.NewHandler(nil, llm, log),
		Cache:         opts.cache,
		Observability: opts.obs,
	}, log)
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return h
}

func TestProcess_CovidEndToEnd(t *testing.T) {
	covid := newPredictionStub(t, 0, map[string]interface{}{"risk_score": 0.42})
	churn := newPredictionStub(t, 0, map[string]interface{}{})
	llm := &scriptedCompletion{replies: []string{
		`{"country_name": "France", "confirmed_cases": 500000, "deaths": null}`,
		"France faces a moderate risk of 42%.",
	}}

	h := newPipeline(t, llm, covid.server.URL, churn.server.URL, pipelineOptions{})

	resp, err := h.Process(context.Background(), "What's the COVID-19 situation in France with 500000 cases?")
	require.NoError(t, err)

	assert.Equal(t, "France faces a moderate risk of 42%.", resp.Response)
	assert.Equal(t, models.IntentCovid, resp.Intent)
	assert.InDelta(t, 2.0/3.0, resp.Confidence, 1e-9)
	assert.Equal(t, "COVID-19 Prediction Model", resp.ModelUsed)
	assert.Equal(t, models.PredictionResult{"risk_score": 0.42}, resp.RawPrediction)

	assert.Equal(t, int32(1), covid.hits.Load())
	assert.Equal(t, int32(0), churn.hits.Load())
	assert.Equal(t, models.ParameterSet{"country_name": "France", "confirmed_cases": 500000.0}, covid.LastParams())
	assert.Equal(t, 2, llm.Calls())
}

func TestProcess_PredictionTimeout(t *testing.T) {
	covid := newPredictionStub(t, 500*time.Millisecond, map[string]interface{}{"risk_score": 0.42})
	llm := &scriptedCompletion{replies: []string{`{"country_name": "France"}`, "unused"}}

	h := newPipeline(t, llm, covid.server.URL, "http://127.0.0.1:1", pipelineOptions{gatewayTimeout: 50 * time.Millisecond})

	resp, err := h.Process(context.Background(), "What's the COVID-19 risk in France?")
	require.NoError(t, err)

	assert.Equal(t, "I encountered an error: Failed to get COVID prediction", resp.Response)
	assert.Equal(t, models.IntentCovid, resp.Intent)
	assert.Equal(t, "COVID-19 Prediction Model", resp.ModelUsed)
	msg, failed := resp.RawPrediction.ErrorMessage()
	assert.True(t, failed)
	assert.Equal(t, callprediction.MsgCovidFailed, msg)
	assert.Equal(t, 1, llm.Calls(), "synthesis must not call the completion service")
}

func TestProcess_UnknownIntent(t *testing.T) {
	covid := newPredictionStub(t, 0, map[string]interface{}{})
	churn := newPredictionStub(t, 0, map[string]interface{}{})
	llm := &scriptedCompletion{}

	h := newPipeline(t, llm, covid.server.URL, churn.server.URL, pipelineOptions{})

	resp, err := h.Process(context.Background(), "Tell me a joke about cats")
	require.NoError(t, err)

	assert.Equal(t, &models.AgentResponse{Response: MsgClarify, Intent: models.IntentUnknown}, resp)
	assert.Equal(t, 0, llm.Calls())
	assert.Equal(t, int32(0), covid.hits.Load())
	assert.Equal(t, int32(0), churn.hits.Load())
}

func TestProcess_BelowThreshold(t *testing.T) {
	llm := &scriptedCompletion{}
	h := newPipeline(t, llm, "http://127.0.0.1:1", "http://127.0.0.1:1", pipelineOptions{threshold: 0.5})

	// one covid and one churn keyword: churn wins the tie at 1/3
	resp, err := h.Process(context.Background(), "covid customer")
	require.NoError(t, err)

	assert.Equal(t, MsgClarify, resp.Response)
	assert.Equal(t, models.IntentUnknown, resp.Intent)
	assert.Zero(t, resp.Confidence)
	assert.Equal(t, 0, llm.Calls())
}

func TestProcess_NeedMoreInformation(t *testing.T) {
	covid := newPredictionStub(t, 0, map[string]interface{}{})
	llm := &scriptedCompletion{replies: []string{"{}"}}

	h := newPipeline(t, llm, covid.server.URL, "http://127.0.0.1:1", pipelineOptions{})

	resp, err := h.Process(context.Background(), "Tell me about the covid pandemic")
	require.NoError(t, err)

	assert.Equal(t, MsgNeedCovidInfo, resp.Response)
	assert.Equal(t, models.IntentCovid, resp.Intent)
	assert.InDelta(t, 2.0/3.0, resp.Confidence, 1e-9)
	assert.Empty(t, resp.ModelUsed)
	assert.Nil(t, resp.RawPrediction)
	assert.Equal(t, int32(0), covid.hits.Load())
}

func TestProcess_ChurnGuestDefault(t *testing.T) {
	churn := newPredictionStub(t, 0, map[string]interface{}{"churn_probability": 0.72})
	llm := &scriptedCompletion{replies: []string{"not json at all", "High churn risk."}}

	h := newPipeline(t, llm, "http://127.0.0.1:1", churn.server.URL, pipelineOptions{})

	resp, err := h.Process(context.Background(), "Will this customer churn? They pay $70.25 a month")
	require.NoError(t, err)

	assert.Equal(t, "High churn risk.", resp.Response)
	assert.Equal(t, models.IntentChurn, resp.Intent)
	assert.Equal(t, "Churn Prediction Model", resp.ModelUsed)

	sent := churn.LastParams()
	assert.Equal(t, "GUEST_1700000000000", sent[models.FieldCustomerID])
	assert.Equal(t, 70.25, sent[models.FieldMonthlyCharges])
}

func TestProcess_CovidCountryDefault(t *testing.T) {
	covid := newPredictionStub(t, 0, map[string]interface{}{"risk_level": "LOW"})
	llm := &scriptedCompletion{replies: []string{`{"confirmed_cases": 100}`, "Low risk."}}

	h := newPipeline(t, llm, covid.server.URL, "http://127.0.0.1:1", pipelineOptions{})

	_, err := h.Process(context.Background(), "covid outlook with 100 cases")
	require.NoError(t, err)

	sent := covid.LastParams()
	assert.Equal(t, DefaultCountryName, sent[models.FieldCountryName])
	assert.Equal(t, float64(100), sent[models.FieldConfirmedCases])
}

func TestProcess_EmptyQuery(t *testing.T) {
	h := newPipeline(t, nil, "http://127.0.0.1:1", "http://127.0.0.1:1", pipelineOptions{})

	_, err := h.Process(context.Background(), "   ")
	assert.Error(t, err)

	_, err = h.Execute(context.Background(), &Input{})
	assert.Error(t, err)
}

func TestProcess_CacheHit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	responseCache := cache.NewRedisCache(client, config.CacheConfig{TTLSeconds: 60, KeyPrefix: "agent:response:"}, logger.NewTestLogger(t))

	covid := newPredictionStub(t, 0, map[string]interface{}{"risk_score": 0.42})
	llm := &scriptedCompletion{replies: []string{`{"country_name": "France"}`, "Moderate risk."}}

	h := newPipeline(t, llm, covid.server.URL, "http://127.0.0.1:1", pipelineOptions{cache: responseCache})

	first, err := h.Process(context.Background(), "What's the COVID-19 risk in France?")
	require.NoError(t, err)

	second, err := h.Process(context.Background(), "what's the covid-19 risk in   FRANCE?")
	require.NoError(t, err)

	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, first.ModelUsed, second.ModelUsed)
	assert.Equal(t, int32(1), covid.hits.Load())
	assert.Equal(t, 2, llm.Calls())
}

func TestProcess_GuestAnswersNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	responseCache := cache.NewRedisCache(client, config.CacheConfig{TTLSeconds: 60, KeyPrefix: "agent:response:"}, logger.NewTestLogger(t))

	churn := newPredictionStub(t, 0, map[string]interface{}{"churn_probability": 0.3})
	llm := &scriptedCompletion{replies: []string{
		`{"tenure_months": 12}`, "Moderate churn risk.",
		`{"tenure_months": 12}`, "Moderate churn risk.",
	}}

	h := newPipeline(t, llm, "http://127.0.0.1:1", churn.server.URL, pipelineOptions{cache: responseCache})

	for i := 0; i < 2; i++ {
		resp, err := h.Process(context.Background(), "Will a customer with 12 months tenure churn?")
		require.NoError(t, err)
		assert.Equal(t, "Moderate churn risk.", resp.Response)
	}

	assert.Equal(t, int32(2), churn.hits.Load())
	assert.Equal(t, "GUEST_1700000000000", churn.LastParams()[models.FieldCustomerID])
	assert.Empty(t, mr.Keys())
}

func TestProcess_RecordsStageSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	obs := observability.NewWithTracerProvider("agent-test", tp)

	churn := newPredictionStub(t, 0, map[string]interface{}{"churn_probability": 0.1})
	llm := &scriptedCompletion{replies: []string{`{"customer_id": "CUST_001", "tenure_months": 24}`, "Low churn risk."}}

	h := newPipeline(t, llm, "http://127.0.0.1:1", churn.server.URL, pipelineOptions{obs: obs})

	_, err := h.Process(context.Background(), "Is customer CUST_001 likely to churn?")
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{
		"agent.classify", "agent.extract", "agent.predict", "agent.synthesize", "agent.process_query",
	}, names)
}

func TestWithDefaults_DoesNotMutateInput(t *testing.T) {
	h := newPipeline(t, nil, "", "", pipelineOptions{})
	in := models.ParameterSet{models.FieldTenureMonths: 3}

	out := h.withDefaults(models.IntentChurn, in)

	assert.NotContains(t, in, models.FieldCustomerID)
	assert.Equal(t, "GUEST_1700000000000", out[models.FieldCustomerID])
}

func TestFromAgent(t *testing.T) {
	assert.Equal(t, config.DefaultConfidenceThreshold, FromAgent(config.AgentConfig{}).ConfidenceThreshold)
	assert.Equal(t, 0.6, FromAgent(config.AgentConfig{ConfidenceThreshold: 0.6}).ConfidenceThreshold)
}
