package processcommand

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/validation"
	"command-pipeline/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

// fakeBroker records the job commands the real zeebe command builders send.
type fakeBroker struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
}

func (b *fakeBroker) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, opts ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed = append(b.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (b *fakeBroker) FailJob(ctx context.Context, in *pb.FailJobRequest, opts ...grpc.CallOption) (*pb.FailJobResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = append(b.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (b *fakeBroker) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, opts ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.thrown = append(b.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}

func noRetry(context.Context, error) bool { return false }

type fakeJobClient struct {
	broker *fakeBroker
}

func (c *fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.broker, noRetry)
}

func (c *fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.broker, noRetry)
}

func (c *fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.broker, noRetry)
}

type recordingExecutor struct {
	calls []models.CommandRequest
	actor string
	resp  *models.Response
}

func (e *recordingExecutor) Execute(ctx context.Context, req models.CommandRequest, actor string) *models.Response {
	e.calls = append(e.calls, req)
	e.actor = actor
	return e.resp
}

// ==========================
// Test Helper Functions
// ==========================

func newTestHandler(t *testing.T, exec Executor) *Handler {
	t.Helper()
	v, err := validation.NewCommandRequestValidator()
	require.NoError(t, err)
	return NewHandler("", exec, v, logger.NewTestLogger(t))
}

func testJob(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                42,
		ProcessInstanceKey: 7,
		Type:               TaskType,
		Retries:            3,
		Variables:          variables,
	}}
}

// ==========================
// Handle
// ==========================

func TestHandle_CompletesJobWithResponse(t *testing.T) {
	exec := &recordingExecutor{resp: &models.Response{Message: "A technician is on the way.", Action: models.StatusCompleted}}
	broker := &fakeBroker{}
	h := newTestHandler(t, exec)

	err := h.Handle(&fakeJobClient{broker: broker}, testJob(
		`{"request":{"requestId":"job-1","rawText":"my heater is broken","channel":"voice"},"actor":"ivr-flow"}`))

	require.NoError(t, err)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "job-1", exec.calls[0].RequestID)
	assert.Equal(t, models.ChannelVoice, exec.calls[0].Channel)
	assert.Equal(t, "ivr-flow", exec.actor)

	require.Len(t, broker.completed, 1)
	assert.Empty(t, broker.failed)
	assert.Empty(t, broker.thrown)
	assert.Equal(t, int64(42), broker.completed[0].GetJobKey())

	var out Output
	require.NoError(t, json.Unmarshal([]byte(broker.completed[0].GetVariables()), &out))
	assert.Equal(t, models.StatusCompleted, out.Response.Action)
	assert.Equal(t, "A technician is on the way.", out.Response.Message)
}

func TestHandle_DefaultActor(t *testing.T) {
	exec := &recordingExecutor{resp: &models.Response{Action: models.StatusNeedsHuman}}
	h := newTestHandler(t, exec)

	err := h.Handle(&fakeJobClient{broker: &fakeBroker{}}, testJob(`{"request":{"requestId":"job-2","rawText":"hello","channel":"chat"}}`))

	require.NoError(t, err)
	assert.Equal(t, DefaultActor, exec.actor)
}

func TestHandle_ErrorOutcomeStillCompletes(t *testing.T) {
	exec := &recordingExecutor{resp: &models.Response{Action: models.StatusError, Data: map[string]interface{}{"code": "EXTERNAL_SERVICE_FAILURE"}}}
	broker := &fakeBroker{}
	h := newTestHandler(t, exec)

	err := h.Handle(&fakeJobClient{broker: broker}, testJob(`{"request":{"requestId":"job-3","rawText":"fix my ac","channel":"sms"}}`))

	require.NoError(t, err)
	assert.Len(t, broker.completed, 1)
	assert.Empty(t, broker.thrown)
}

func TestHandle_BadVariablesThrowInvalidRequest(t *testing.T) {
	tests := []struct {
		name      string
		variables string
	}{
		{"not json", `{"request":`},
		{"no request", `{"actor":"ivr-flow"}`},
		{"unknown channel", `{"request":{"requestId":"job-4","rawText":"hi","channel":"fax"}}`},
		{"unknown field", `{"request":{"requestId":"job-5","rawText":"hi","channel":"chat","mood":"angry"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{resp: &models.Response{}}
			broker := &fakeBroker{}
			h := newTestHandler(t, exec)

			err := h.Handle(&fakeJobClient{broker: broker}, testJob(tt.variables))

			require.NoError(t, err)
			assert.Empty(t, exec.calls, "pipeline never runs")
			assert.Empty(t, broker.completed)
			assert.Empty(t, broker.failed, "invalid input is not retried")
			require.Len(t, broker.thrown, 1)
			assert.Equal(t, int64(42), broker.thrown[0].GetJobKey())
			assert.Equal(t, "INVALID_REQUEST", broker.thrown[0].GetErrorCode())
			assert.Contains(t, broker.thrown[0].GetVariables(), `"originalErrorCode":"INVALID_REQUEST"`)
		})
	}
}
