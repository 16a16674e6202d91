// internal/workers/pipeline/handoff-decision/decide.go
package handoffdecision

import (
	"time"

	"command-pipeline/internal/models"
)

const (
	ReasonEmergency     = "emergency"
	ReasonNeedsHuman    = "needs_human"
	ReasonError         = "error"
	ReasonAfterHours    = "after_hours"
	ReasonNoTransferDst = "no_transfer_target"
)

// Decide picks what the channel does with the caller after an outcome.
// Completed outcomes never hand off. Emergencies go to the emergency line
// at any hour. Everything else transfers while staffed and collects a
// callback otherwise.
func Decide(now time.Time, s *Schedule, brain models.BrainID, outcome models.BrainOutcome) models.HandoffInstruction {
	if outcome.Status == models.StatusCompleted {
		return models.HandoffInstruction{Action: models.HandoffNone}
	}

	if isEmergency(outcome) && s.EmergencyLine() != "" {
		return models.HandoffInstruction{
			Action: models.HandoffTransfer,
			Target: s.EmergencyLine(),
			Reason: ReasonEmergency,
		}
	}

	reason := ReasonNeedsHuman
	if outcome.Status == models.StatusError {
		reason = ReasonError
	}

	if !s.Open(now) {
		return models.HandoffInstruction{Action: models.HandoffCollectCallback, Reason: ReasonAfterHours}
	}

	target := s.Target(brain)
	if target == "" {
		return models.HandoffInstruction{Action: models.HandoffCollectCallback, Reason: ReasonNoTransferDst}
	}
	return models.HandoffInstruction{Action: models.HandoffTransfer, Target: target, Reason: reason}
}

func isEmergency(outcome models.BrainOutcome) bool {
	v, ok := outcome.Data["emergency"].(bool)
	return ok && v
}
