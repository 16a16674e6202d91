package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/common/auth"
	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/models"
)

// fakeZoho answers searches with no matches and accepts every write.
func fakeZoho(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var writes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		n := atomic.AddInt32(&writes, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":[{"code":"SUCCESS","details":{"id":"Z-%d"},"status":"success"}]}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &writes
}

func testConfig(t *testing.T, zohoURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "pipeline.db")
	cfg.Ledger = config.LedgerConfig{Backend: "sql", Retention: 3600000, InProgressTTL: 60000, WaitTimeout: 1000, PollInterval: 20}
	cfg.Audit = config.AuditConfig{Backend: "sql", Timeout: 1000}
	cfg.Gateway = config.GatewayConfig{CallTimeout: 1000, MaxRetries: 1, BaseDelay: 10, MaxDelay: 20}
	cfg.Auth = config.AuthConfig{Mode: auth.ModeAPIKey, APIKeys: map[string]string{"voice-gateway": "k-1"}}
	cfg.Integrations.Zoho.BaseURL = zohoURL
	cfg.Handoff = config.HandoffConfig{Timezone: "America/Chicago", DefaultTarget: "+12145550100", EmergencyLine: "+12145550911"}
	cfg.Observability = config.ObservabilityConfig{ServiceName: "command-pipeline-test", SampleRatio: 1}
	return cfg
}

func TestBuildApp_EndToEnd(t *testing.T) {
	zoho, writes := fakeZoho(t)
	cfg := testConfig(t, zoho.URL)

	a, err := buildApp(context.Background(), cfg, prometheus.NewRegistry(), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer a.close(context.Background())

	post := func(body string) (*httptest.ResponseRecorder, models.Response) {
		req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(body))
		req.Header.Set(auth.HeaderAPIKey, "k-1")
		rec := httptest.NewRecorder()
		a.server.Router().ServeHTTP(rec, req)

		var resp models.Response
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		}
		return rec, resp
	}

	body := `{"requestId":"e2e-1","rawText":"my heater isn't working, it's 50 degrees inside","channel":"voice","hints":{"address":"123 Main St, DeSoto, TX 75115"}}`
	rec, first := post(body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, models.StatusCompleted, first.Action, first.Message)
	assert.NotEmpty(t, first.Data["serviceRecordId"])
	writesAfterFirst := atomic.LoadInt32(writes)

	_, second := post(body)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, writesAfterFirst, atomic.LoadInt32(writes))

	require.NoError(t, a.recorder.Flush(context.Background()))
	var n int
	require.NoError(t, a.sql.QueryRow(context.Background(), "SELECT COUNT(*) FROM audit_records WHERE request_id = ?", "e2e-1").Scan(&n))
	assert.Equal(t, 2, n)

	ready := httptest.NewRecorder()
	a.server.Router().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
}

func TestBuildApp_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Handoff.Timezone = "Mars/Olympus_Mons"

	_, err := buildApp(context.Background(), cfg, prometheus.NewRegistry(), logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handoff schedule")
}
