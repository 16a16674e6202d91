package processcommand

import "command-pipeline/internal/models"

type Input struct {
	Request models.CommandRequest `json:"request"`
	Actor   string                `json:"actor,omitempty"`
}

type Output struct {
	Response models.Response `json:"response"`
}

// storedResult is the ledger payload. Intent and brain ride along so a
// replay can be audited like the original.
type storedResult struct {
	Response models.Response   `json:"response"`
	Intent   models.IntentKind `json:"intent"`
	Brain    models.BrainID    `json:"brain"`
}
