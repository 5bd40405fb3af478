package main

import (
	"context"

	"mlops-agent/internal/cache"
	"mlops-agent/internal/common/completion"
	"mlops-agent/internal/common/config"
	"mlops-agent/internal/common/database"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/observability"
	callprediction "mlops-agent/internal/workers/agent/call-prediction"
	classifyintent "mlops-agent/internal/workers/agent/classify-intent"
	extractparameters "mlops-agent/internal/workers/agent/extract-parameters"
	processquery "mlops-agent/internal/workers/agent/process-query"
	synthesizeresponse "mlops-agent/internal/workers/agent/synthesize-response"

	"go.uber.org/zap"
)

// app holds the wired pipeline shared by the serve and ask commands.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	redis  *database.RedisClient

	classifier  *classifyintent.Handler
	extractor   *extractparameters.Handler
	predictor   *callprediction.Handler
	synthesizer *synthesizeresponse.Handler
	pipeline    *processquery.Handler
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name),
	}

	log.Info("configuration loaded", cfg.Summary())

	llm, err := completion.New(ctx, cfg.Completion)
	if err != nil {
		log.Warn("completion service unavailable, extraction falls back to pattern matching", map[string]interface{}{
			"provider": cfg.Completion.Provider,
			"error":    err,
		})
		llm = nil
	}

	a.classifier = classifyintent.NewHandler(nil, log)
	a.extractor = extractparameters.NewHandler(nil, llm, log)
	a.predictor = callprediction.NewHandler(callprediction.FromServices(cfg.Services), log)
	a.synthesizer = synthesizeresponse.NewHandler(nil, llm, log)

	stages := processquery.Stages{
		Classifier:    a.classifier,
		Extractor:     a.extractor,
		Predictor:     a.predictor,
		Synthesizer:   a.synthesizer,
		Observability: a.obs,
	}
	if responseCache := a.connectCache(ctx); responseCache != nil {
		stages.Cache = responseCache
	}

	a.pipeline = processquery.NewHandler(processquery.FromAgent(cfg.Agent), stages, log)
	return a
}

// connectCache returns nil when the cache is disabled or Redis is down; the
// pipeline then runs without it.
func (a *app) connectCache(ctx context.Context) *cache.RedisCache {
	if !a.cfg.Cache.Enabled {
		return nil
	}

	client, err := database.NewRedis(a.cfg.Database.Redis)
	if err == nil {
		err = client.Ping(ctx)
	}
	if err != nil {
		a.log.Warn("response cache disabled", map[string]interface{}{
			"address": a.cfg.Database.Redis.Address,
			"error":   err,
		})
		if client != nil {
			_ = client.Close()
		}
		return nil
	}

	a.redis = client
	a.log.Info("response cache enabled", map[string]interface{}{
		"address":    a.cfg.Database.Redis.Address,
		"ttlSeconds": a.cfg.Cache.TTLSeconds,
	})
	return cache.NewRedisCache(client.GetClient(), a.cfg.Cache, a.log)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}
