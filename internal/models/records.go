// internal/models/records.go
package models

import (
	"encoding/json"
	"time"
)

type IdempotencyState string

const (
	StateNew        IdempotencyState = "new"
	StateInProgress IdempotencyState = "in_progress"
	StateCompleted  IdempotencyState = "completed"
	StateFailed     IdempotencyState = "failed"
)

type IdempotencyRecord struct {
	Scope           string           `json:"scope"`
	Key             string           `json:"key"`
	State           IdempotencyState `json:"state"`
	ResponseHash    string           `json:"responseHash,omitempty"`
	ResponsePayload json.RawMessage  `json:"responsePayload,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

// Terminal reports whether the record reached Completed or Failed.
func (r *IdempotencyRecord) Terminal() bool {
	return r.State == StateCompleted || r.State == StateFailed
}

type AuditRecord struct {
	ID                     string          `json:"id"`
	RequestID              string          `json:"requestId"`
	Channel                Channel         `json:"channel"`
	Actor                  string          `json:"actor"`
	Intent                 IntentKind      `json:"intent"`
	Brain                  BrainID         `json:"brain"`
	CommandSnapshot        json.RawMessage `json:"commandSnapshot,omitempty"`
	ExternalResultSnapshot json.RawMessage `json:"externalResultSnapshot,omitempty"`
	Status                 OutcomeStatus   `json:"status"`
	ErrorMessage           string          `json:"errorMessage,omitempty"`
	Timestamp              time.Time       `json:"timestamp"`
}
