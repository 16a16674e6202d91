// internal/workers/pipeline/extract-command/handler.go
package extractcommand

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/policy"
)

const TaskType = "extract-command"

// Handler exposes the extractor as a standalone job so a process can
// classify text without running effects.
type Handler struct {
	extractor    *Extractor
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(p *policy.Policy, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		extractor:    NewExtractor(p),
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	ctx := context.Background()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, errors.NewInvalidRequestError("parse input: "+err.Error()))
		return nil
	}

	output := h.Execute(&input)

	h.logger.Info("command extracted", map[string]interface{}{
		"jobKey":    job.Key,
		"intent":    output.Command.Intent,
		"urgency":   output.Command.Entities.Urgency,
		"emergency": output.Command.Emergency(),
	})

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		return err
	}
	_, err = cmd.Send(ctx)
	return err
}

func (h *Handler) Execute(input *Input) *Output {
	return &Output{Command: h.extractor.Extract(input.Request)}
}
