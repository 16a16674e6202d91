package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/metrics"
)

type errorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
	Errors  interface{}      `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
}

// handleCommand authenticates, validates and runs one request. Business
// outcomes, including error outcomes, are 200 responses; the action field
// carries the result.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	principal, err := s.deps.Authenticator.Authenticate(r.Context(), r)
	if err != nil {
		s.rejectUnauthenticated(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    errors.ErrCodeInvalidRequest,
				Message: "request body too large",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Code: errors.ErrCodeInvalidRequest, Message: err.Error()})
		return
	}

	req, err := s.deps.Validator.DecodeCommandRequest(body)
	if err != nil {
		out := errorBody{Code: errors.ErrCodeInvalidRequest, Message: "request failed validation"}
		if stdErr, ok := errors.AsStandard(err); ok {
			out.Details = stdErr.Details
			out.Errors = stdErr.Metadata["violations"]
		}
		writeJSON(w, http.StatusBadRequest, out)
		return
	}

	resp := s.deps.Pipeline.Execute(r.Context(), req, principal.Actor)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) rejectUnauthenticated(w http.ResponseWriter, err error) {
	stdErr, ok := errors.AsStandard(err)
	if !ok || stdErr.Code != errors.ErrCodeSecurityViolation {
		s.logger.Error("authentication backend failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Code:    errors.ErrCodeExternalServiceFailure,
			Message: "authentication unavailable",
		})
		return
	}

	metrics.SecurityViolations.WithLabelValues(stdErr.Details).Inc()
	s.logger.Warn("request rejected", map[string]interface{}{
		"code":   stdErr.Code,
		"reason": stdErr.Details,
	})
	writeJSON(w, http.StatusUnauthorized, errorBody{Code: stdErr.Code, Message: stdErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
