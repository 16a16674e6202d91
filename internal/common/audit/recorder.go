// Package audit records one append-only entry per pipeline execution.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"command-pipeline/internal/common/errors"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/metrics"
	"command-pipeline/internal/models"
)

// Alerter raises an operational alert. A nil Alerter disables alerts.
type Alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

// Recorder writes audit records in the background. The caller's response
// never waits on the store.
type Recorder struct {
	store   Store
	alerter Alerter
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store Store, alerter Alerter, timeout time.Duration, log logger.Logger) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		store:   store,
		alerter: alerter,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "audit"}),
		now:     time.Now,
	}
}

// Record schedules rec for writing and returns immediately. The write is
// detached from ctx cancellation. Missing id and timestamp are filled in.
func (r *Recorder) Record(ctx context.Context, rec models.AuditRecord) string {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}

	base := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(base, rec)
	}()
	return rec.ID
}

func (r *Recorder) write(base context.Context, rec models.AuditRecord) {
	ctx, cancel := context.WithTimeout(base, r.timeout)
	defer cancel()

	err := r.store.Write(ctx, rec)
	if err == nil {
		return
	}

	metrics.AuditWriteFailures.Inc()
	stdErr := errors.NewAuditWriteFailedError(err)
	r.logger.Error("audit write failed", map[string]interface{}{
		"auditId":   rec.ID,
		"requestId": rec.RequestID,
		"status":    rec.Status,
		"code":      stdErr.Code,
		"error":     err.Error(),
	})

	if r.alerter == nil {
		return
	}
	alertCtx, alertCancel := context.WithTimeout(base, r.timeout)
	defer alertCancel()
	msg := fmt.Sprintf("audit record %s for request %s (%s) was not persisted: %v", rec.ID, rec.RequestID, rec.Status, err)
	if alertErr := r.alerter.Alert(alertCtx, "command-pipeline audit write failed", msg); alertErr != nil {
		r.logger.Error("audit alert failed", map[string]interface{}{
			"auditId": rec.ID,
			"error":   alertErr.Error(),
		})
	}
}

// Flush blocks until in-flight writes finish or ctx is done.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
