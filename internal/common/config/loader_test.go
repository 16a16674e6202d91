package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SQLiteWithDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: command-pipeline
  version: 1.2.0
database:
  driver: sqlite
  sqlite:
    path: /tmp/pipeline.db
auth:
  mode: api_key
  api_keys:
    voice-gateway: ${PIPELINE_TEST_KEY}
handoff:
  hours:
    monday: {open: "08:00", close: "18:00"}
  targets:
    revenue: sales-queue
`)
	t.Setenv("PIPELINE_TEST_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/pipeline.db", cfg.Database.SQLite.Path)
	assert.Equal(t, "s3cret", cfg.Auth.APIKeys["voice-gateway"])
	assert.Equal(t, "sql", cfg.Ledger.Backend)
	assert.Equal(t, "sql", cfg.Audit.Backend)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "process-command", cfg.Camunda.TaskType)
	assert.Equal(t, 2, cfg.Gateway.MaxRetries)
	assert.Equal(t, 72*time.Hour, GetDuration(cfg.Ledger.Retention))
	assert.Equal(t, "08:00", cfg.Handoff.Hours["monday"].Open)
	assert.Equal(t, "sales-queue", cfg.Handoff.Targets["revenue"])
	assert.Equal(t, "command-pipeline", cfg.Observability.ServiceName)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "postgres host missing",
			body: `
database:
  driver: postgres
auth:
  api_keys: {a: b}
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "redis ledger without address",
			body: `
database:
  driver: sqlite
ledger:
  backend: redis
auth:
  api_keys: {a: b}
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "no api keys",
			body: `
database:
  driver: sqlite
`,
			wantErr: "auth.api_keys must contain at least one key",
		},
		{
			name: "unknown audit backend",
			body: `
database:
  driver: sqlite
audit:
  backend: s3
auth:
  api_keys: {a: b}
`,
			wantErr: "audit.backend must be sql or elasticsearch",
		},
		{
			name: "camunda enabled without broker",
			body: `
database:
  driver: sqlite
camunda:
  enabled: true
auth:
  api_keys: {a: b}
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "lease shorter than slow gateway",
			body: `
database:
  driver: sqlite
gateway:
  call_timeout: 30000
auth:
  api_keys: {a: b}
`,
			wantErr: "ledger.in_progress_ttl (120000ms) must exceed the worst-case gateway time (470000ms)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "pipeline", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pipeline sslmode=disable", p.GetDSN())
}

func TestWorstCaseGatewayTime(t *testing.T) {
	defaults := GatewayConfig{CallTimeout: 5000, MaxRetries: 2, BaseDelay: 200, MaxDelay: 2000}
	assert.Equal(t, 95000, WorstCaseGatewayTime(defaults))
	assert.Less(t, WorstCaseGatewayTime(defaults), 120000, "default lease covers default gateway")

	noRetry := GatewayConfig{CallTimeout: 1000}
	assert.Equal(t, 5000, WorstCaseGatewayTime(noRetry))
}
