// internal/models/outcome.go
package models

type OutcomeStatus string

const (
	StatusCompleted  OutcomeStatus = "completed"
	StatusNeedsHuman OutcomeStatus = "needs_human"
	StatusError      OutcomeStatus = "error"
)

// BrainID names the policy engine that handled a command.
type BrainID string

const (
	BrainNone       BrainID = "none"
	BrainOperations BrainID = "operations"
	BrainRevenue    BrainID = "revenue"
	BrainFinance    BrainID = "finance"
	BrainPeople     BrainID = "people"
)

func (b BrainID) Valid() bool {
	switch b {
	case BrainNone, BrainOperations, BrainRevenue, BrainFinance, BrainPeople:
		return true
	}
	return false
}

// BrainOutcome is the three-way result of a brain decision. Status is the
// only authoritative signal; Message is what the caller speaks or displays.
type BrainOutcome struct {
	Status        OutcomeStatus          `json:"status"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data,omitempty"`
	MissingFields []string               `json:"missingFields,omitempty"`
}

func Completed(message string, data map[string]interface{}) BrainOutcome {
	return BrainOutcome{Status: StatusCompleted, Message: message, Data: data}
}

func NeedsHuman(message string, data map[string]interface{}, missing ...string) BrainOutcome {
	return BrainOutcome{Status: StatusNeedsHuman, Message: message, Data: data, MissingFields: missing}
}

func Failed(message string, data map[string]interface{}) BrainOutcome {
	return BrainOutcome{Status: StatusError, Message: message, Data: data}
}

// Decision pairs an outcome with the effects required to realise it.
type Decision struct {
	Outcome BrainOutcome `json:"outcome"`
	Effects []Effect     `json:"effects,omitempty"`
}

// HandoffAction tells the channel what to do with the caller next.
type HandoffAction string

const (
	HandoffNone            HandoffAction = "none"
	HandoffTransfer        HandoffAction = "transfer"
	HandoffCollectCallback HandoffAction = "collect_callback"
)

type HandoffInstruction struct {
	Action HandoffAction `json:"action"`
	Target string        `json:"target,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Response is returned to the inbound channel and stored in the ledger.
type Response struct {
	Message       string                 `json:"message"`
	Action        OutcomeStatus          `json:"action"`
	Data          map[string]interface{} `json:"data,omitempty"`
	MissingFields []string               `json:"missingFields,omitempty"`
	Handoff       *HandoffInstruction    `json:"handoff,omitempty"`
}
