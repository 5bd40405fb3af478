package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mlops-agent/internal/common/camunda"
	"mlops-agent/internal/common/config"
	"mlops-agent/internal/server"
	"mlops-agent/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the query API and, when enabled, the workflow job workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a := newApp(ctx, cfg)
	defer a.close()

	opts := server.Options{
		Processor:      a.pipeline,
		Services:       a.predictor,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         a.log,
	}

	if cfg.Camunda.Enabled {
		zeebe, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, a.log)
		if err != nil {
			return fmt.Errorf("connect to workflow engine: %w", err)
		}
		defer zeebe.Close()
		a.log.Info("Zeebe client connected successfully", map[string]interface{}{
			"broker": cfg.Camunda.BrokerAddress,
		})

		workers, err := startWorkers(a, zeebe)
		if err != nil {
			return err
		}
		defer func() {
			for _, w := range workers {
				w.Close()
				w.AwaitClose()
			}
			a.log.Info("job workers stopped", map[string]interface{}{"count": len(workers)})
		}()

		opts.Workflow = zeebe
	}

	err := server.New(opts).Run(ctx, cfg.Server)
	a.log.Info("agent stopped", nil)
	return err
}

// startWorkers opens one job worker per registered activity, guarded by the
// activity's input schema.
func startWorkers(a *app, zeebe *camunda.Client) ([]worker.JobWorker, error) {
	handlers := map[string]camunda.JobHandler{
		"classify-intent":     a.classifier,
		"extract-parameters":  a.extractor,
		"call-prediction":     a.predictor,
		"synthesize-response": a.synthesizer,
		"process-query":       a.pipeline,
	}

	var workers []worker.JobWorker
	for _, activity := range registry.Default().Activities {
		handler, ok := handlers[activity.TaskType]
		if !ok {
			a.log.Warn("no handler for registered activity", map[string]interface{}{"taskType": activity.TaskType})
			continue
		}

		guarded, err := activity.Guard(handler, a.log)
		if err != nil {
			return workers, err
		}

		wcfg := config.GetWorkerConfig(a.cfg, activity.TaskType)
		if w := camunda.StartWorker(zeebe.GetClient(), activity.TaskType, wcfg, guarded, a.log); w != nil {
			workers = append(workers, w)
		}
	}
	return workers, nil
}
