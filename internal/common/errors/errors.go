package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Pipeline taxonomy
	ErrCodeExtractionAmbiguity    ErrorCode = "EXTRACTION_AMBIGUITY"
	ErrCodeMissingRequiredField   ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrCodeIdentityConflict       ErrorCode = "IDENTITY_CONFLICT"
	ErrCodeExternalServiceFailure ErrorCode = "EXTERNAL_SERVICE_FAILURE"
	ErrCodeSecurityViolation      ErrorCode = "SECURITY_VIOLATION"

	// Infrastructure
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodeLedgerUnavailable      ErrorCode = "LEDGER_UNAVAILABLE"
	ErrCodeRequestInProgress      ErrorCode = "REQUEST_IN_PROGRESS"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeERPAPIError            ErrorCode = "ERP_API_ERROR"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewExtractionAmbiguityError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionAmbiguity,
		Message:   "Request could not be classified",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMissingRequiredFieldError(fields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingRequiredField,
		Message:   "Required information is missing",
		Details:   strings.Join(fields, ","),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewIdentityConflictError(phone string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityConflict,
		Message:   "Existing identity with same phone has different details",
		Details:   fmt.Sprintf("phone: %s", phone),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalServiceFailure,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSecurityViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSecurityViolation,
		Message:   "Request authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLedgerUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerUnavailable,
		Message:   "Idempotency ledger unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRequestInProgressError(scope, key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInProgress,
		Message:   "Request with this key is still being processed",
		Details:   fmt.Sprintf("scope: %s, key: %s", scope, key),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Audit record write failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewERPAPIError(operation string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeERPAPIError,
		Message:   fmt.Sprintf("ERP operation '%s' failed with status %d", operation, status),
		Details:   body,
		Retryable: status == 429 || status >= 500,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// AsStandard unwraps err into a *StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeExtractionAmbiguity:    "EXTRACTION_AMBIGUITY",
	ErrCodeMissingRequiredField:   "MISSING_REQUIRED_FIELD",
	ErrCodeExternalServiceFailure: "EXTERNAL_SERVICE_FAILURE",
	ErrCodeSecurityViolation:      "SECURITY_VIOLATION",
	ErrCodeInvalidRequest:         "INVALID_REQUEST",
	ErrCodeLedgerUnavailable:      "LEDGER_UNAVAILABLE",
	ErrCodeRequestInProgress:      "REQUEST_IN_PROGRESS",
	ErrCodeERPAPIError:            "EXTERNAL_SERVICE_FAILURE",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeTimeout:                "EXTERNAL_SERVICE_FAILURE",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExternalServiceFailure,
		ErrCodeERPAPIError,
		ErrCodeLedgerUnavailable,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeTimeout,
		ErrCodeRequestInProgress:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeExtractionAmbiguity, ErrCodeMissingRequiredField, ErrCodeIdentityConflict:
		return "RECOVERABLE"
	case ErrCodeSecurityViolation:
		return "SECURITY"
	case ErrCodeExternalServiceFailure, ErrCodeERPAPIError, ErrCodeTimeout, ErrCodeNotificationSendFailed:
		return "EXTERNAL"
	case ErrCodeLedgerUnavailable, ErrCodeRequestInProgress, ErrCodeAuditWriteFailed:
		return "STORAGE"
	case ErrCodeInvalidRequest:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
