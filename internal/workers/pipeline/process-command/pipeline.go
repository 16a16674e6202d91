// internal/workers/pipeline/process-command/pipeline.go
package processcommand

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/ledger"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/metrics"
	"command-pipeline/internal/common/observability"
	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	"command-pipeline/internal/workers/brains"
	"command-pipeline/internal/workers/brains/finance"
	"command-pipeline/internal/workers/brains/operations"
	"command-pipeline/internal/workers/brains/people"
	"command-pipeline/internal/workers/brains/revenue"
	extractcommand "command-pipeline/internal/workers/pipeline/extract-command"
	handoffdecision "command-pipeline/internal/workers/pipeline/handoff-decision"
	routecommand "command-pipeline/internal/workers/pipeline/route-command"
)

const (
	msgUnclassified = "I want to make sure I get this right. Are you calling about a repair, an estimate, a bill, or a job opening?"
	msgGatewayError = "I wasn't able to finish that in our system. A member of our team will take it from here."
	msgInProgress   = "I'm still working on your previous request. Please hold on a moment."
	msgUnavailable  = "I'm sorry, I can't process requests right now. A member of our team will help you instead."
	msgBadRequest   = "I'm sorry, I couldn't process that request. A member of our team will help you instead."
)

// Gateway executes a decision's effects.
type Gateway interface {
	Execute(ctx context.Context, effects []models.Effect) (models.EffectResults, error)
}

// AuditRecorder accepts one record per execution without blocking.
type AuditRecorder interface {
	Record(ctx context.Context, rec models.AuditRecord) string
}

type Deps struct {
	Policy        *policy.Policy
	Ledger        ledger.Ledger
	Gateway       Gateway
	Audit         AuditRecorder
	Schedule      *handoffdecision.Schedule
	Observability *observability.Observability
}

// Pipeline turns one inbound request into exactly one response and one
// audit record.
type Pipeline struct {
	config    *Config
	policy    *policy.Policy
	extractor *extractcommand.Extractor
	router    *routecommand.Router
	brains    map[models.BrainID]brains.Brain
	gateway   Gateway
	ledger    ledger.Ledger
	audit     AuditRecorder
	schedule  *handoffdecision.Schedule
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewPipeline(cfg *Config, deps Deps, log logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	switch {
	case deps.Policy == nil:
		return nil, fmt.Errorf("pipeline requires a policy")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("pipeline requires a ledger")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("pipeline requires a gateway")
	case deps.Audit == nil:
		return nil, fmt.Errorf("pipeline requires an audit recorder")
	case deps.Schedule == nil:
		return nil, fmt.Errorf("pipeline requires a handoff schedule")
	}

	router, err := routecommand.NewRouter(deps.Policy)
	if err != nil {
		return nil, err
	}

	registry := map[models.BrainID]brains.Brain{}
	for _, b := range []brains.Brain{
		operations.New(deps.Policy),
		revenue.New(deps.Policy),
		finance.New(deps.Policy),
		people.New(deps.Policy),
	} {
		registry[b.ID()] = b
	}
	for _, intent := range models.AllIntents() {
		if id, ok := router.Route(intent); ok {
			if _, found := registry[id]; !found {
				return nil, fmt.Errorf("intent %q routes to unregistered brain %q", intent, id)
			}
		}
	}

	return &Pipeline{
		config:    cfg,
		policy:    deps.Policy,
		extractor: extractcommand.NewExtractor(deps.Policy),
		router:    router,
		brains:    registry,
		gateway:   deps.Gateway,
		ledger:    deps.Ledger,
		audit:     deps.Audit,
		schedule:  deps.Schedule,
		obs:       deps.Observability,
		logger:    log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:       time.Now,
	}, nil
}

// run accumulates what the audit record needs as the request moves through
// the stages.
type run struct {
	req     models.CommandRequest
	actor   string
	intent  models.IntentKind
	brain   models.BrainID
	command *models.Command
	results *models.EffectResults
	replay  *models.IdempotencyRecord
	err     error

	claimedAt time.Time
}

// Execute never returns nil. Once the ledger grants a fresh claim the
// remaining stages ignore caller cancellation.
func (p *Pipeline) Execute(ctx context.Context, req models.CommandRequest, actor string) *models.Response {
	start := time.Now()
	if actor == "" {
		actor = p.config.DefaultActor
	}
	r := &run{req: req, actor: actor, intent: models.IntentUnknown, brain: models.BrainNone}

	ctx, span := p.obs.StartSpan(ctx, "pipeline.execute",
		attribute.String("channel", string(req.Channel)),
		attribute.String("requestId", requestRef(req)),
	)
	defer span.End()

	resp := p.execute(ctx, r)
	p.finish(ctx, r, resp, time.Since(start))
	return resp
}

func (p *Pipeline) execute(ctx context.Context, r *run) *models.Response {
	scope, key, err := ledger.DeriveKey(r.req)
	if err != nil {
		stdErr := errors.NewInvalidRequestError(err.Error())
		r.err = stdErr
		return p.infraResponse(r, msgBadRequest, stdErr)
	}

	stageStart := time.Now()
	claim, err := p.ledger.Begin(ctx, scope, key)
	p.observeStage(ctx, "ledger_begin", stageStart)
	if err != nil {
		stdErr := errors.NewLedgerUnavailableError(err)
		r.err = stdErr
		return p.infraResponse(r, msgUnavailable, stdErr)
	}

	if !claim.Fresh {
		prev := claim.Previous
		if prev == nil || !prev.Terminal() {
			prev, err = p.await(ctx, scope, key)
			if err != nil {
				stdErr := errors.NewLedgerUnavailableError(err)
				r.err = stdErr
				return p.infraResponse(r, msgUnavailable, stdErr)
			}
		}
		if prev == nil || !prev.Terminal() {
			stdErr := errors.NewRequestInProgressError(scope, key)
			r.err = stdErr
			return p.infraResponse(r, msgInProgress, stdErr)
		}
		return p.replay(r, prev)
	}

	// The lease was stamped during Begin, so measure from before the call.
	r.claimedAt = stageStart
	ctx = context.WithoutCancel(ctx)
	resp := p.process(ctx, r)
	p.finalize(ctx, r, scope, key, resp)
	return resp
}

// process runs extract, route, brain and gateway for a fresh claim.
func (p *Pipeline) process(ctx context.Context, r *run) *models.Response {
	stageStart := time.Now()
	_, span := p.obs.StartSpan(ctx, "pipeline.extract")
	cmd := p.extractor.Extract(r.req)
	span.End()
	p.observeStage(ctx, "extract", stageStart)

	r.command = &cmd
	r.intent = cmd.Intent

	brainID, ok := p.router.Route(cmd.Intent)
	if !ok {
		return p.respond(r, p.unclassified(cmd))
	}
	r.brain = brainID
	brain := p.brains[brainID]

	stageStart = time.Now()
	_, span = p.obs.StartSpan(ctx, "pipeline.brain", attribute.String("brain", string(brainID)))
	decision := brain.Handle(cmd)
	span.End()
	p.observeStage(ctx, "brain", stageStart)

	outcome := decision.Outcome
	if len(decision.Effects) == 0 {
		return p.respond(r, outcome)
	}

	stageStart = time.Now()
	gwCtx, span := p.obs.StartSpan(ctx, "pipeline.gateway", attribute.Int("effects", len(decision.Effects)))
	if p.config.LeaseTTL > 0 {
		// Stop before the lease lapses and a duplicate can reclaim the key.
		var cancel context.CancelFunc
		gwCtx, cancel = context.WithDeadline(gwCtx, r.claimedAt.Add(p.config.LeaseTTL))
		defer cancel()
	}
	results, err := p.gateway.Execute(gwCtx, decision.Effects)
	span.End()
	p.observeStage(ctx, "gateway", stageStart)
	r.results = &results

	if err != nil {
		r.err = err
		return p.respond(r, gatewayFailure(decision.Outcome, results, err))
	}

	if f, ok := brain.(brains.Finalizer); ok {
		outcome = f.Finalize(decision, results)
	}
	outcome.Data = mergeResults(outcome.Data, results)
	return p.respond(r, outcome)
}

// unclassified is the fixed outcome for Unknown: one clarifying question,
// with the usual handoff attached in case the caller cannot answer it.
// Safety phrases still escalate to the emergency line.
func (p *Pipeline) unclassified(cmd models.Command) models.BrainOutcome {
	if cmd.Emergency() {
		return brains.EscalateEmergency(models.BrainNone, cmd, p.policy.PriorityFor(models.UrgencyEmergency)).Outcome
	}
	return models.NeedsHuman(msgUnclassified, map[string]interface{}{
		"reason":   "unclassified",
		"question": "intent",
		"options":  []string{"repair", "estimate", "billing", "hiring"},
	}, "intent")
}

func gatewayFailure(planned models.BrainOutcome, results models.EffectResults, err error) models.BrainOutcome {
	data := mergeResults(nil, results)
	data["code"] = string(errors.ErrCodeExternalServiceFailure)
	if emergency, ok := planned.Data["emergency"].(bool); ok && emergency {
		data["emergency"] = true
		data["priority"] = planned.Data["priority"]
	}
	if stdErr, ok := errors.AsStandard(err); ok {
		if effect, ok := stdErr.Metadata["effect"]; ok {
			data["failedEffect"] = effect
		}
	}
	return models.Failed(msgGatewayError, data)
}

// mergeResults copies the record ids the caller may need into data.
func mergeResults(data map[string]interface{}, results models.EffectResults) map[string]interface{} {
	if data == nil {
		data = map[string]interface{}{}
	}
	set := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	set("customerId", results.CustomerID)
	set("serviceRecordId", results.ServiceRecordID)
	set("leadId", results.LeadID)
	set("quoteId", results.QuoteID)
	if results.IdentityCreated {
		data["identityCreated"] = true
	}
	if results.IdentityConflict {
		data["identityConflict"] = true
	}
	return data
}

// respond attaches the handoff instruction to an outcome.
func (p *Pipeline) respond(r *run, outcome models.BrainOutcome) *models.Response {
	resp := &models.Response{
		Message:       outcome.Message,
		Action:        outcome.Status,
		Data:          outcome.Data,
		MissingFields: outcome.MissingFields,
	}
	handoff := handoffdecision.Decide(p.now(), p.schedule, r.brain, outcome)
	if handoff.Action != models.HandoffNone {
		resp.Handoff = &handoff
	}
	return resp
}

func (p *Pipeline) infraResponse(r *run, message string, stdErr *errors.StandardError) *models.Response {
	return p.respond(r, models.Failed(message, map[string]interface{}{
		"code":      string(stdErr.Code),
		"retryable": stdErr.Retryable,
	}))
}

// await polls the ledger until the original finishes, the wait budget runs
// out or the caller goes away. A nil record means it is still running.
func (p *Pipeline) await(ctx context.Context, scope, key string) (*models.IdempotencyRecord, error) {
	if p.config.WaitTimeout <= 0 {
		return nil, nil
	}
	deadline := time.NewTimer(p.config.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-ticker.C:
			rec, err := p.ledger.Lookup(ctx, scope, key)
			if err != nil {
				return nil, err
			}
			if rec != nil && rec.Terminal() {
				return rec, nil
			}
		}
	}
}

func (p *Pipeline) replay(r *run, rec *models.IdempotencyRecord) *models.Response {
	r.replay = rec
	metrics.PipelineReplays.WithLabelValues(string(rec.State)).Inc()

	if rec.ResponseHash != "" && ledger.ResponseHash(rec.ResponsePayload) != rec.ResponseHash {
		p.logger.Warn("stored response hash mismatch", map[string]interface{}{
			"scope": rec.Scope,
			"key":   rec.Key,
		})
	}

	var stored storedResult
	if err := json.Unmarshal(rec.ResponsePayload, &stored); err != nil {
		r.err = fmt.Errorf("decode stored response: %w", err)
		return p.infraResponse(r, msgUnavailable, errors.NewLedgerUnavailableError(r.err))
	}
	r.intent = stored.Intent
	r.brain = stored.Brain

	resp := stored.Response
	return &resp
}

// finalize stores the response so retries replay it. Error outcomes are
// stored as Failed and may be reclaimed by a later attempt.
func (p *Pipeline) finalize(ctx context.Context, r *run, scope, key string, resp *models.Response) {
	payload, err := json.Marshal(storedResult{Response: *resp, Intent: r.intent, Brain: r.brain})
	if err != nil {
		p.logger.Error("failed to encode response for ledger", map[string]interface{}{"error": err.Error()})
		return
	}

	stageStart := time.Now()
	if resp.Action == models.StatusError {
		err = p.ledger.Fail(ctx, scope, key, payload)
	} else {
		err = p.ledger.Complete(ctx, scope, key, payload)
	}
	p.observeStage(ctx, "ledger_finalize", stageStart)

	if err != nil {
		level := p.logger.Error
		if stderrors.Is(err, ledger.ErrAlreadyFinalized) {
			level = p.logger.Warn
		}
		level("ledger finalize failed", map[string]interface{}{
			"scope":  scope,
			"key":    key,
			"action": resp.Action,
			"error":  err.Error(),
		})
	}
}

// finish writes the single audit record and request metrics.
func (p *Pipeline) finish(ctx context.Context, r *run, resp *models.Response, elapsed time.Duration) {
	rec := models.AuditRecord{
		RequestID: requestRef(r.req),
		Channel:   r.req.Channel,
		Actor:     r.actor,
		Intent:    r.intent,
		Brain:     r.brain,
		Status:    resp.Action,
	}
	if r.command != nil {
		rec.CommandSnapshot = snapshot(r.command)
	}
	switch {
	case r.replay != nil:
		rec.ExternalResultSnapshot = snapshot(map[string]interface{}{
			"replay":       true,
			"state":        r.replay.State,
			"responseHash": r.replay.ResponseHash,
		})
	case r.results != nil:
		rec.ExternalResultSnapshot = snapshot(r.results)
	}
	if r.err != nil {
		rec.ErrorMessage = r.err.Error()
	}
	auditID := p.audit.Record(ctx, rec)

	metrics.PipelineRequests.WithLabelValues(string(r.req.Channel), string(resp.Action)).Inc()
	metrics.PipelineIntents.WithLabelValues(string(r.intent), string(r.brain)).Inc()
	p.obs.RecordRun(ctx, string(r.req.Channel), string(resp.Action))

	fields := map[string]interface{}{
		"requestId":  rec.RequestID,
		"auditId":    auditID,
		"channel":    r.req.Channel,
		"intent":     r.intent,
		"brain":      r.brain,
		"action":     resp.Action,
		"replay":     r.replay != nil,
		"durationMs": elapsed.Milliseconds(),
	}
	if resp.Handoff != nil {
		fields["handoff"] = resp.Handoff.Action
	}
	if r.err != nil {
		fields["error"] = r.err.Error()
		p.logger.Warn("command finished with error", fields)
		return
	}
	p.logger.Info("command processed", fields)
}

func (p *Pipeline) observeStage(ctx context.Context, stage string, start time.Time) {
	d := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(d.Seconds())
	p.obs.RecordStage(ctx, stage, d)
}

func requestRef(req models.CommandRequest) string {
	if req.RequestID != "" {
		return req.RequestID
	}
	if req.CallID != "" {
		return req.CallID + ":" + req.ToolCallID
	}
	return ""
}

func snapshot(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
