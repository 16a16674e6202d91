// internal/workers/pipeline/extract-command/models.go
package extractcommand

import "command-pipeline/internal/models"

type Input struct {
	Request models.CommandRequest `json:"request"`
}

type Output struct {
	Command models.Command `json:"command"`
}
