// internal/workers/pipeline/process-command/handler.go
package processcommand

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/metrics"
	"command-pipeline/internal/common/validation"
	"command-pipeline/internal/models"
)

const (
	TaskType     = "process-command"
	DefaultActor = "camunda"
)

// Executor runs one request through the pipeline.
type Executor interface {
	Execute(ctx context.Context, req models.CommandRequest, actor string) *models.Response
}

// Handler runs the pipeline for process-command jobs. Business outcomes,
// including error outcomes, complete the job; only malformed variables fail
// it.
type Handler struct {
	pipeline     Executor
	validator    *validation.Validator
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	taskType     string
}

type jobVariables struct {
	Request json.RawMessage `json:"request"`
	Actor   string          `json:"actor"`
}

func NewHandler(taskType string, pipeline Executor, validator *validation.Validator, log logger.Logger) *Handler {
	if taskType == "" {
		taskType = TaskType
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	return &Handler{
		pipeline:     pipeline,
		validator:    validator,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		taskType:     taskType,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(h.taskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(h.taskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(h.taskType).Observe(time.Since(start).Seconds())
	}()

	ctx := context.Background()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var vars jobVariables
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		return h.fail(ctx, client, job, errors.NewInvalidRequestError("parse input: "+err.Error()))
	}
	if len(vars.Request) == 0 {
		return h.fail(ctx, client, job, errors.NewInvalidRequestError("job variables carry no request"))
	}

	req, err := h.validator.DecodeCommandRequest(vars.Request)
	if err != nil {
		return h.fail(ctx, client, job, err)
	}

	actor := vars.Actor
	if actor == "" {
		actor = DefaultActor
	}
	resp := h.pipeline.Execute(ctx, req, actor)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(Output{Response: *resp})
	if err != nil {
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(h.taskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
		"action": resp.Action,
	})
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandard(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(h.taskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
	return nil
}
