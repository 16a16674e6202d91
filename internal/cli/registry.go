package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/validation"
	extractcommand "command-pipeline/internal/workers/pipeline/extract-command"
	processcommand "command-pipeline/internal/workers/pipeline/process-command"
	"command-pipeline/pkg/registry"
)

const registryVersion = "1.0.0"

// pipelineActivities lists the job types served by `serve` when Camunda is
// enabled.
func pipelineActivities(processTaskType string, timeout time.Duration) *registry.ActivityRegistry {
	request := validation.CommandRequestSchema()
	return &registry.ActivityRegistry{
		Version: registryVersion,
		Activities: []registry.Activity{
			{
				ID:          processcommand.TaskType,
				DisplayName: "Process Command",
				Description: "Runs one request through the ledger, extractor, router, brain, gateway and audit log.",
				Category:    "pipeline",
				Version:     registryVersion,
				TaskType:    processTaskType,
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"request"},
					"properties": map[string]interface{}{
						"request": request,
						"actor":   map[string]interface{}{"type": "string"},
					},
				},
				OutputSchema: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"response": map[string]interface{}{"type": "object"}},
				},
				ErrorCodes: []string{string(errors.ErrCodeInvalidRequest)},
				Timeout:    timeout.String(),
				Retries:    3,
				Tags:       []string{"idempotent", "side-effects"},
			},
			{
				ID:          extractcommand.TaskType,
				DisplayName: "Extract Command",
				Description: "Classifies an utterance and extracts entities. No side effects.",
				Category:    "pipeline",
				Version:     registryVersion,
				TaskType:    extractcommand.TaskType,
				InputSchema: map[string]interface{}{
					"type":       "object",
					"required":   []interface{}{"request"},
					"properties": map[string]interface{}{"request": request},
				},
				OutputSchema: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"command": map[string]interface{}{"type": "object"}},
				},
				ErrorCodes: []string{string(errors.ErrCodeInvalidRequest)},
				Timeout:    timeout.String(),
				Tags:       []string{"pure"},
			},
		},
	}
}

func NewRegistryCommand() *cobra.Command {
	var (
		taskType string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Export or check the Camunda activity registry",
	}
	cmd.PersistentFlags().StringVar(&taskType, "task-type", processcommand.TaskType, "job type of the process-command worker")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "job timeout")

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the activity registry as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := pipelineActivities(taskType, timeout)
			if out != "" {
				return reg.Save(out)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reg)
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")

	validate := &cobra.Command{
		Use:   "validate <activity-registry.json>",
		Short: "Check a registry file declares every job type this binary serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(args[0])
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			if missing := reg.Missing(pipelineActivities(taskType, timeout)); len(missing) > 0 {
				return fmt.Errorf("registry is missing task types %v", missing)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d activities)\n", args[0], len(reg.Activities))
			return nil
		},
	}

	cmd.AddCommand(export, validate)
	return cmd
}
