package executeeffects

import (
	"context"
	stderrors "errors"
	"fmt"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/metrics"
	"command-pipeline/internal/common/retry"
	"command-pipeline/internal/models"
)

// ERP is the narrow contract to the system of record.
type ERP interface {
	FindIdentities(ctx context.Context, q models.IdentityQuery) ([]models.CustomerIdentity, error)
	CreateIdentity(ctx context.Context, identity models.CustomerIdentity) (string, error)
	UpsertServiceRecord(ctx context.Context, rec models.ServiceRecord) (string, error)
	CreateLead(ctx context.Context, lead models.Lead) (string, error)
	CreateQuote(ctx context.Context, quote models.Quote) (string, error)
	InvoiceStatus(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error)
}

type Notifier interface {
	Send(ctx context.Context, msg models.Notification) (string, error)
}

// Service executes a decision's effects in declared order.
type Service struct {
	config   *Config
	logger   logger.Logger
	erp      ERP
	notifier Notifier
}

func NewService(cfg *Config, erp ERP, notifier Notifier, log logger.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "gateway"}),
		erp:      erp,
		notifier: notifier,
	}
}

// Execute runs every effect sequentially. An ERP failure that survives the
// retries stops execution and returns EXTERNAL_SERVICE_FAILURE together with
// the results gathered so far. Notification failures are recorded only.
func (s *Service) Execute(ctx context.Context, effects []models.Effect) (models.EffectResults, error) {
	var results models.EffectResults

	for i, effect := range effects {
		step, err := s.executeOne(ctx, effect, &results)
		results.Steps = append(results.Steps, step)
		metrics.GatewayCalls.WithLabelValues(string(effect.Kind), step.Status).Inc()

		if err == nil {
			continue
		}

		if effect.Kind == models.EffectNotify {
			s.logger.Warn("notification failed", map[string]interface{}{
				"channel":  effect.Notification.Channel,
				"attempts": step.Attempts,
				"error":    err.Error(),
			})
			continue
		}

		s.logger.Error("effect failed", map[string]interface{}{
			"effect":    effect.Kind,
			"index":     i,
			"attempts":  step.Attempts,
			"completed": i,
			"error":     err.Error(),
		})
		return results, errors.NewExternalServiceError("erp", err).
			WithMetadata("effect", string(effect.Kind)).
			WithMetadata("completedSteps", i)
	}

	return results, nil
}

func (s *Service) executeOne(ctx context.Context, effect models.Effect, results *models.EffectResults) (models.EffectStep, error) {
	step := models.EffectStep{Kind: effect.Kind}

	var (
		attempts int
		err      error
	)
	switch effect.Kind {
	case models.EffectResolveIdentity:
		attempts, err = s.resolveIdentity(ctx, effect.Identity, results)
		step.RecordID = results.CustomerID

	case models.EffectUpsertServiceRecord:
		rec := *effect.ServiceRecord
		if rec.CustomerID == "" {
			rec.CustomerID = results.CustomerID
		}
		var id string
		attempts, err = s.call(ctx, func(ctx context.Context) error {
			var callErr error
			id, callErr = s.erp.UpsertServiceRecord(ctx, rec)
			return callErr
		})
		results.ServiceRecordID = id
		step.RecordID = id

	case models.EffectCreateLead:
		lead := *effect.Lead
		if lead.CustomerID == "" {
			lead.CustomerID = results.CustomerID
		}
		var id string
		attempts, err = s.call(ctx, func(ctx context.Context) error {
			var callErr error
			id, callErr = s.erp.CreateLead(ctx, lead)
			return callErr
		})
		results.LeadID = id
		step.RecordID = id

	case models.EffectCreateQuote:
		quote := *effect.Quote
		if quote.CustomerID == "" {
			quote.CustomerID = results.CustomerID
		}
		if quote.LeadID == "" {
			quote.LeadID = results.LeadID
		}
		var id string
		attempts, err = s.call(ctx, func(ctx context.Context) error {
			var callErr error
			id, callErr = s.erp.CreateQuote(ctx, quote)
			return callErr
		})
		results.QuoteID = id
		step.RecordID = id

	case models.EffectReadInvoiceStatus:
		var inv *models.InvoiceStatus
		attempts, err = s.call(ctx, func(ctx context.Context) error {
			var callErr error
			inv, callErr = s.erp.InvoiceStatus(ctx, effect.Invoice.InvoiceNumber)
			return callErr
		})
		results.Invoice = inv

	case models.EffectNotify:
		if s.notifier == nil {
			step.Status = models.StepSkipped
			return step, nil
		}
		var id string
		attempts, err = s.call(ctx, func(ctx context.Context) error {
			var callErr error
			id, callErr = s.notifier.Send(ctx, *effect.Notification)
			return callErr
		})
		step.RecordID = id

	default:
		err = fmt.Errorf("unknown effect kind %q", effect.Kind)
	}

	step.Attempts = attempts
	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		return step, err
	}
	step.Status = models.StepSucceeded
	return step, nil
}

// resolveIdentity never updates an existing ERP identity. A phone match is
// reused only when the supplied name and email agree with it; otherwise a
// new identity is created and the conflict is flagged. Callers without a
// phone always get a new identity.
func (s *Service) resolveIdentity(ctx context.Context, spec *models.IdentitySpec, results *models.EffectResults) (int, error) {
	supplied := spec.Identity
	total := 0

	var candidates []models.CustomerIdentity
	if supplied.Phone != "" {
		attempts, err := s.call(ctx, func(ctx context.Context) error {
			var callErr error
			candidates, callErr = s.erp.FindIdentities(ctx, models.IdentityQuery{Phone: supplied.Phone})
			return callErr
		})
		total += attempts
		if err != nil {
			return total, err
		}
	}

	for _, c := range candidates {
		if matchesCandidate(supplied, c) {
			results.CustomerID = c.ID
			return total, nil
		}
	}

	if len(candidates) > 0 {
		results.IdentityConflict = true
		s.logger.Warn("identity conflict, creating new record", map[string]interface{}{
			"candidates": len(candidates),
			"error":      errors.NewIdentityConflictError(supplied.Phone).Error(),
		})
	}

	var id string
	attempts, err := s.call(ctx, func(ctx context.Context) error {
		var callErr error
		id, callErr = s.erp.CreateIdentity(ctx, models.CustomerIdentity{
			Name:    supplied.Name,
			Phone:   supplied.Phone,
			Email:   supplied.Email,
			Address: spec.Address,
		})
		return callErr
	})
	total += attempts
	if err != nil {
		return total, err
	}
	results.CustomerID = id
	results.IdentityCreated = true
	return total, nil
}

// call runs fn under the per-call timeout with retries on transient failures.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) (int, error) {
	return retry.Do(ctx, s.config.retryPolicy(), isTransient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})
}

func isTransient(err error) bool {
	if stdErr, ok := errors.AsStandard(err); ok {
		return stdErr.Retryable
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}
