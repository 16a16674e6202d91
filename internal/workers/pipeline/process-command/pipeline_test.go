package processcommand

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/database"
	apperrors "command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/ledger"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/metrics"
	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
	executeeffects "command-pipeline/internal/workers/pipeline/execute-effects"
	handoffdecision "command-pipeline/internal/workers/pipeline/handoff-decision"
)

// ==========================
// Mock Implementations
// ==========================

type recordingAudit struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (a *recordingAudit) Record(ctx context.Context, rec models.AuditRecord) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.ID = "audit-" + string(rune('a'+len(a.records)))
	a.records = append(a.records, rec)
	return rec.ID
}

func (a *recordingAudit) all() []models.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.AuditRecord(nil), a.records...)
}

type stubGateway struct {
	calls   int32
	delay   time.Duration
	results models.EffectResults
	err     error
	onCall  func(ctx context.Context)
}

func (g *stubGateway) Execute(ctx context.Context, effects []models.Effect) (models.EffectResults, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.onCall != nil {
		g.onCall(ctx)
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.results, g.err
}

func (g *stubGateway) count() int { return int(atomic.LoadInt32(&g.calls)) }

// stubERP backs the real gateway service.
type stubERP struct {
	calls int32
}

func (e *stubERP) hit() { atomic.AddInt32(&e.calls, 1) }

func (e *stubERP) FindIdentities(ctx context.Context, q models.IdentityQuery) ([]models.CustomerIdentity, error) {
	e.hit()
	return nil, nil
}

func (e *stubERP) CreateIdentity(ctx context.Context, identity models.CustomerIdentity) (string, error) {
	e.hit()
	return "C-1", nil
}

func (e *stubERP) UpsertServiceRecord(ctx context.Context, rec models.ServiceRecord) (string, error) {
	e.hit()
	return "SR-1", nil
}

func (e *stubERP) CreateLead(ctx context.Context, lead models.Lead) (string, error) {
	e.hit()
	return "L-1", nil
}

func (e *stubERP) CreateQuote(ctx context.Context, quote models.Quote) (string, error) {
	e.hit()
	return "Q-1", nil
}

func (e *stubERP) InvoiceStatus(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	e.hit()
	return nil, nil
}

type brokenLedger struct {
	ledger.Ledger
}

func (brokenLedger) Begin(ctx context.Context, scope, key string) (ledger.BeginResult, error) {
	return ledger.BeginResult{}, errors.New("connection refused")
}

// ==========================
// Test Helper Functions
// ==========================

func newSQLiteLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	client, err := database.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Migrate(context.Background()))
	return ledger.NewSQLStore(client, ledger.Options{})
}

func testSchedule(t *testing.T) *handoffdecision.Schedule {
	t.Helper()
	s, err := handoffdecision.NewSchedule(config.HandoffConfig{
		Timezone: "America/Chicago",
		Hours: map[string]config.HoursRange{
			"monday": {Open: "08:00", Close: "17:00"},
		},
		DefaultTarget: "+15550000000",
		EmergencyLine: "+15559110000",
		Targets:       map[string]string{"revenue": "+15550003333"},
	})
	require.NoError(t, err)
	return s
}

// mondayMorning is inside staffed hours in America/Chicago.
var mondayMorning = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

type fixture struct {
	pipeline *Pipeline
	ledger   ledger.Ledger
	audit    *recordingAudit
}

func newFixture(t *testing.T, gw Gateway, l ledger.Ledger) *fixture {
	t.Helper()
	if l == nil {
		l = newSQLiteLedger(t)
	}
	audit := &recordingAudit{}
	cfg := &Config{WaitTimeout: 2 * time.Second, PollInterval: 10 * time.Millisecond, DefaultActor: "test"}
	p, err := NewPipeline(cfg, Deps{
		Policy:   policy.Default(),
		Ledger:   l,
		Gateway:  gw,
		Audit:    audit,
		Schedule: testSchedule(t),
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	p.now = func() time.Time { return mondayMorning }
	return &fixture{pipeline: p, ledger: l, audit: audit}
}

func heaterRequest(id string) models.CommandRequest {
	return models.CommandRequest{
		RequestID: id,
		RawText:   "my heater isn't working, it's 52 degrees inside",
		Channel:   models.ChannelVoice,
		Hints:     &models.Hints{Address: "123 Main St, DeSoto, TX 75115"},
	}
}

// ==========================
// Scenarios
// ==========================

func TestExecute_HeaterEmergencyDispatch(t *testing.T) {
	erp := &stubERP{}
	gw := executeeffects.NewService(executeeffects.DefaultConfig(), erp, nil, logger.NewTestLogger(t))
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(context.Background(), heaterRequest("heat-1"), "voice-gateway")

	require.Equal(t, models.StatusCompleted, resp.Action, resp.Message)
	assert.Equal(t, "SR-1", resp.Data["serviceRecordId"])
	assert.Equal(t, true, resp.Data["emergency"])
	assert.Equal(t, "P1", resp.Data["priority"])
	assert.Nil(t, resp.Handoff)
	assert.Equal(t, int32(1), atomic.LoadInt32(&erp.calls))

	records := f.audit.all()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "heat-1", rec.RequestID)
	assert.Equal(t, "voice-gateway", rec.Actor)
	assert.Equal(t, models.IntentServiceRequest, rec.Intent)
	assert.Equal(t, models.BrainOperations, rec.Brain)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.NotEmpty(t, rec.CommandSnapshot)
	assert.Contains(t, string(rec.ExternalResultSnapshot), "SR-1")

	stored, err := f.ledger.Lookup(context.Background(), ledger.DefaultScope, "req:heat-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, stored.State)
	assert.Equal(t, ledger.ResponseHash(stored.ResponsePayload), stored.ResponseHash)
}

func TestExecute_ReplayMakesNoERPCalls(t *testing.T) {
	erp := &stubERP{}
	gw := executeeffects.NewService(executeeffects.DefaultConfig(), erp, nil, logger.NewTestLogger(t))
	f := newFixture(t, gw, nil)

	first := f.pipeline.Execute(context.Background(), heaterRequest("heat-2"), "")
	callsAfterFirst := atomic.LoadInt32(&erp.calls)

	replays := testutil.ToFloat64(metrics.PipelineReplays.WithLabelValues(string(models.StateCompleted)))
	second := f.pipeline.Execute(context.Background(), heaterRequest("heat-2"), "")

	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&erp.calls))
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.Data["serviceRecordId"], second.Data["serviceRecordId"])
	assert.Equal(t, replays+1, testutil.ToFloat64(metrics.PipelineReplays.WithLabelValues(string(models.StateCompleted))))

	records := f.audit.all()
	require.Len(t, records, 2)
	assert.Equal(t, "test", records[1].Actor)
	assert.Equal(t, models.IntentServiceRequest, records[1].Intent)
	assert.Equal(t, models.BrainOperations, records[1].Brain)
	assert.Contains(t, string(records[1].ExternalResultSnapshot), `"replay":true`)
}

func TestExecute_QuoteNeedsMoreInformation(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(context.Background(), models.CommandRequest{
		RequestID: "quote-1",
		RawText:   "how much for a new AC system",
		Channel:   models.ChannelChat,
	}, "chat-widget")

	assert.Equal(t, models.StatusNeedsHuman, resp.Action)
	assert.Contains(t, resp.MissingFields, "name")
	assert.Contains(t, resp.MissingFields, "timeline")
	assert.Equal(t, 0, gw.count())
	require.NotNil(t, resp.Handoff)
	assert.Equal(t, models.HandoffTransfer, resp.Handoff.Action)
	assert.Equal(t, "+15550003333", resp.Handoff.Target)

	records := f.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusNeedsHuman, records[0].Status)
	assert.Equal(t, models.BrainRevenue, records[0].Brain)
	assert.Empty(t, records[0].ExternalResultSnapshot)
}

func TestExecute_UnknownIntentSkipsBrains(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(context.Background(), models.CommandRequest{
		RequestID: "unknown-1",
		RawText:   "hello there",
		Channel:   models.ChannelChat,
	}, "")

	assert.Equal(t, models.StatusNeedsHuman, resp.Action)
	assert.Equal(t, msgUnclassified, resp.Message)
	assert.Contains(t, resp.Message, "?", "asks one clarifying question")
	assert.Equal(t, []string{"intent"}, resp.MissingFields)
	assert.Equal(t, "unclassified", resp.Data["reason"])
	require.NotNil(t, resp.Handoff, "handoff stays available")
	assert.Equal(t, 0, gw.count())

	records := f.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.IntentUnknown, records[0].Intent)
	assert.Equal(t, models.BrainNone, records[0].Brain)
}

// ==========================
// Failures
// ==========================

func TestExecute_GatewayFailureIsErrorWithHandoff(t *testing.T) {
	gw := &stubGateway{
		results: models.EffectResults{CustomerID: "C-9"},
		err: apperrors.NewExternalServiceError("erp", errors.New("503")).
			WithMetadata("effect", string(models.EffectUpsertServiceRecord)),
	}
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(context.Background(), heaterRequest("fail-1"), "")

	require.Equal(t, models.StatusError, resp.Action)
	assert.Equal(t, msgGatewayError, resp.Message)
	assert.Equal(t, "C-9", resp.Data["customerId"])
	assert.Equal(t, string(apperrors.ErrCodeExternalServiceFailure), resp.Data["code"])
	assert.Equal(t, string(models.EffectUpsertServiceRecord), resp.Data["failedEffect"])
	require.NotNil(t, resp.Handoff)
	assert.Equal(t, "+15559110000", resp.Handoff.Target, "emergency keeps the emergency line")

	stored, err := f.ledger.Lookup(context.Background(), ledger.DefaultScope, "req:fail-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, stored.State)

	records := f.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusError, records[0].Status)
	assert.NotEmpty(t, records[0].ErrorMessage)

	// A failed record is reclaimed by the next attempt.
	gw.err = nil
	retry := f.pipeline.Execute(context.Background(), heaterRequest("fail-1"), "")
	assert.Equal(t, models.StatusCompleted, retry.Action)
	assert.Equal(t, 2, gw.count())
}

func TestExecute_MissingIdempotencyKey(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(context.Background(), models.CommandRequest{RawText: "my heater is broken", Channel: models.ChannelVoice}, "")

	assert.Equal(t, models.StatusError, resp.Action)
	assert.Equal(t, string(apperrors.ErrCodeInvalidRequest), resp.Data["code"])
	assert.NotNil(t, resp.Handoff)
	assert.Equal(t, 0, gw.count())
	assert.Len(t, f.audit.all(), 1)
}

func TestExecute_LedgerUnavailable(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, brokenLedger{})

	resp := f.pipeline.Execute(context.Background(), heaterRequest("down-1"), "")

	assert.Equal(t, models.StatusError, resp.Action)
	assert.Equal(t, string(apperrors.ErrCodeLedgerUnavailable), resp.Data["code"])
	assert.Equal(t, true, resp.Data["retryable"])
	assert.Equal(t, 0, gw.count())

	records := f.audit.all()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].ErrorMessage, "LEDGER_UNAVAILABLE")
}

// ==========================
// Concurrency
// ==========================

func TestExecute_InProgressDuplicateTimesOut(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, nil)
	f.pipeline.config.WaitTimeout = 50 * time.Millisecond

	claim, err := f.ledger.Begin(context.Background(), ledger.DefaultScope, "req:busy-1")
	require.NoError(t, err)
	require.True(t, claim.Fresh)

	resp := f.pipeline.Execute(context.Background(), heaterRequest("busy-1"), "")

	assert.Equal(t, models.StatusError, resp.Action)
	assert.Equal(t, string(apperrors.ErrCodeRequestInProgress), resp.Data["code"])
	assert.Equal(t, 0, gw.count())
	assert.Len(t, f.audit.all(), 1)
}

func TestExecute_WaitsForOriginalThenReplays(t *testing.T) {
	gw := &stubGateway{}
	f := newFixture(t, gw, nil)

	claim, err := f.ledger.Begin(context.Background(), ledger.DefaultScope, "req:slow-1")
	require.NoError(t, err)
	require.True(t, claim.Fresh)

	payload, err := json.Marshal(storedResult{
		Response: models.Response{Message: "Technician dispatched.", Action: models.StatusCompleted},
		Intent:   models.IntentServiceRequest,
		Brain:    models.BrainOperations,
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(40 * time.Millisecond)
		_ = f.ledger.Complete(context.Background(), ledger.DefaultScope, "req:slow-1", payload)
	}()

	resp := f.pipeline.Execute(context.Background(), heaterRequest("slow-1"), "")

	assert.Equal(t, models.StatusCompleted, resp.Action)
	assert.Equal(t, "Technician dispatched.", resp.Message)
	assert.Equal(t, 0, gw.count())
}

func TestExecute_ConcurrentDuplicatesRunOnce(t *testing.T) {
	gw := &stubGateway{delay: 50 * time.Millisecond, results: models.EffectResults{ServiceRecordID: "SR-7"}}
	f := newFixture(t, gw, nil)

	const callers = 8
	responses := make([]*models.Response, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = f.pipeline.Execute(context.Background(), heaterRequest("dup-1"), "")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, gw.count())
	for _, resp := range responses {
		require.NotNil(t, resp)
		assert.Equal(t, models.StatusCompleted, resp.Action)
		assert.Equal(t, "SR-7", resp.Data["serviceRecordId"])
	}
	assert.Len(t, f.audit.all(), callers)
}

func TestExecute_GatewayStopsBeforeLeaseLapses(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	gw := &stubGateway{onCall: func(gwCtx context.Context) {
		deadline, hasDeadline = gwCtx.Deadline()
		<-gwCtx.Done()
	}}
	gw.err = apperrors.NewExternalServiceError("erp", context.DeadlineExceeded)
	f := newFixture(t, gw, nil)
	f.pipeline.config.LeaseTTL = 50 * time.Millisecond

	start := time.Now()
	resp := f.pipeline.Execute(context.Background(), heaterRequest("lease-1"), "")

	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), deadline, 50*time.Millisecond)
	assert.Equal(t, models.StatusError, resp.Action)

	stored, err := f.ledger.Lookup(context.Background(), ledger.DefaultScope, "req:lease-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, stored.State)
}

func TestExecute_CallerCancellationDoesNotAbortEffects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancelled bool
	gw := &stubGateway{onCall: func(gwCtx context.Context) {
		cancel()
		sawCancelled = gwCtx.Err() != nil
	}}
	f := newFixture(t, gw, nil)

	resp := f.pipeline.Execute(ctx, heaterRequest("cancel-1"), "")

	assert.False(t, sawCancelled)
	assert.Equal(t, models.StatusCompleted, resp.Action)

	stored, err := f.ledger.Lookup(context.Background(), ledger.DefaultScope, "req:cancel-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, stored.State)
}

// ==========================
// Construction
// ==========================

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(nil, Deps{}, logger.NewTestLogger(t))
	assert.Error(t, err)

	_, err = NewPipeline(&Config{PollInterval: 0}, Deps{Policy: policy.Default()}, logger.NewTestLogger(t))
	assert.Error(t, err)
}
