// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mlops-agent/internal/common/camunda"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

//go:embed activities.json
var defaultRegistry []byte

// Default returns the registry of the activities this module implements.
func Default() *ActivityRegistry {
	reg, err := parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded activity registry: %v", err))
	}
	return reg
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Check reports registry problems: duplicate task types and input schemas
// that do not compile.
func (r *ActivityRegistry) Check() []string {
	var problems []string
	seen := make(map[string]bool)
	for _, a := range r.Activities {
		if a.TaskType == "" {
			problems = append(problems, fmt.Sprintf("%s: missing taskType", a.ID))
			continue
		}
		if seen[a.TaskType] {
			problems = append(problems, fmt.Sprintf("%s: duplicate taskType %q", a.ID, a.TaskType))
		}
		seen[a.TaskType] = true
		if _, err := a.Validator(); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", a.ID, err))
		}
	}
	return problems
}

// Validator compiles the activity's input schema. An activity without a
// schema accepts any object.
func (a *Activity) Validator() (*validation.Validator, error) {
	schema := a.InputSchema
	if len(schema) == 0 {
		schema = map[string]interface{}{"type": "object"}
	}
	return validation.NewValidator(schema)
}

// Guard wraps next so jobs whose variables violate the input schema fail
// with INVALID_QUERY before reaching the handler.
func (a *Activity) Guard(next camunda.JobHandler, log logger.Logger) (camunda.JobHandler, error) {
	v, err := a.Validator()
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", a.ID, err)
	}
	return &guardedHandler{
		taskType:  a.TaskType,
		validator: v,
		next:      next,
		logger:    log,
	}, nil
}

type guardedHandler struct {
	taskType  string
	validator *validation.Validator
	next      camunda.JobHandler
	logger    logger.Logger
}

func (g *guardedHandler) Handle(client worker.JobClient, job entities.Job) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidQueryError(fmt.Sprintf("parse input: %v", err)), g.logger)
		return
	}

	if result := g.validator.ValidateInput(vars); !result.Valid {
		g.logger.Warn("job variables rejected", map[string]interface{}{
			"taskType": g.taskType,
			"jobKey":   job.Key,
			"errors":   result.GetErrorMessages(),
		})
		camunda.FailJob(client, job, apperrors.NewInvalidQueryError(strings.Join(result.GetErrorMessages(), "; ")), g.logger)
		return
	}

	g.next.Handle(client, job)
}
