// Package validation checks inbound payloads at the service boundary.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/models"
)

// MaxRawTextLength bounds a single utterance.
const MaxRawTextLength = 4000

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

// Validator holds the compiled CommandRequest schema. Safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewCommandRequestValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(CommandRequestSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile command request schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks raw JSON against the schema. Unknown keys at any level
// are rejected.
func (v *Validator) Validate(raw []byte) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_JSON",
		}}}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Errors: errs}
}

// DecodeCommandRequest validates raw and decodes it. The error is an
// INVALID_REQUEST StandardError listing every violation.
func (v *Validator) DecodeCommandRequest(raw []byte) (models.CommandRequest, error) {
	var req models.CommandRequest
	if res := v.Validate(raw); !res.Valid {
		return req, errors.NewInvalidRequestError(strings.Join(res.GetErrorMessages(), "; ")).
			WithMetadata("violations", res.Errors)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, errors.NewInvalidRequestError(err.Error())
	}
	return req, nil
}

func stringProp(maxLen int) map[string]interface{} {
	return map[string]interface{}{"type": "string", "maxLength": maxLen}
}

func intProp(min, max int) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "minimum": min, "maximum": max}
}

func closedObject(props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// CommandRequestSchema is the JSON schema for models.CommandRequest.
func CommandRequestSchema() map[string]interface{} {
	intents := make([]interface{}, 0, len(models.AllIntents()))
	for _, k := range models.AllIntents() {
		intents = append(intents, string(k))
	}

	identity := closedObject(map[string]interface{}{
		"name":  stringProp(200),
		"phone": stringProp(40),
		"email": stringProp(254),
	})

	hints := closedObject(map[string]interface{}{
		"name":               stringProp(200),
		"phone":              stringProp(40),
		"email":              stringProp(254),
		"address":            stringProp(500),
		"propertyType":       stringProp(50),
		"squareFeet":         intProp(1, 1000000),
		"propertyAgeYears":   intProp(0, 500),
		"timeline":           stringProp(50),
		"systemType":         stringProp(50),
		"budgetUsd":          intProp(0, 10000000),
		"appointmentId":      stringProp(64),
		"invoiceNumber":      stringProp(64),
		"preferredDate":      stringProp(64),
		"role":               stringProp(100),
		"employeeId":         stringProp(64),
		"customerTier":       stringProp(50),
		"indoorTemperatureF": intProp(-60, 150),
	})

	conversation := closedObject(map[string]interface{}{
		"conversationId": stringProp(128),
		"callId":         stringProp(128),
		"activeIntent":   map[string]interface{}{"type": "string", "enum": intents},
		"turn":           intProp(0, 10000),
	})

	root := closedObject(map[string]interface{}{
		"requestId":  map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 128},
		"callId":     map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 128},
		"toolCallId": map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 128},
		"scope":      stringProp(64),
		"rawText":    map[string]interface{}{"type": "string", "maxLength": MaxRawTextLength},
		"channel": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{
				string(models.ChannelVoice),
				string(models.ChannelChat),
				string(models.ChannelSMS),
				string(models.ChannelEmail),
				string(models.ChannelAPI),
			},
		},
		"conversationContext": conversation,
		"callerIdentityHint":  identity,
		"hints":               hints,
	})
	root["required"] = []interface{}{"rawText", "channel"}
	root["anyOf"] = []interface{}{
		map[string]interface{}{"required": []interface{}{"requestId"}},
		map[string]interface{}{"required": []interface{}{"callId", "toolCallId"}},
	}
	return root
}
