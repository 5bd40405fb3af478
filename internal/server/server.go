// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mlops-agent/internal/common/config"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/validation"
	"mlops-agent/internal/models"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// QueryProcessor answers one query. It is implemented by the process-query
// handler.
type QueryProcessor interface {
	Process(ctx context.Context, query string) (*models.AgentResponse, error)
}

// ServiceProber reports the health of the prediction service behind an intent.
type ServiceProber interface {
	Health(ctx context.Context, intent models.Intent) callprediction.ServiceHealth
}

// WorkflowProber reports whether the workflow engine is reachable.
type WorkflowProber interface {
	HealthCheck(ctx context.Context) error
}

type Options struct {
	Processor QueryProcessor
	Services  ServiceProber
	// Workflow is nil when the workflow engine is disabled.
	Workflow       WorkflowProber
	AllowedOrigins []string
	ProbeTimeout   time.Duration
	Logger         logger.Logger
}

type Server struct {
	router    *mux.Router
	handler   http.Handler
	opts      Options
	validator *validation.Validator
	logger    logger.Logger
}

func New(opts Options) *Server {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router:    mux.NewRouter(),
		opts:      opts,
		validator: validation.MustNewValidator(validation.QuerySchema),
		logger:    opts.Logger.With(map[string]interface{}{"component": "http"}),
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.accessLog)

	s.router.HandleFunc("/api/query", s.queryHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on cfg's address until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("HTTP server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}
