package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/common/config"
)

func TestRebind(t *testing.T) {
	pg := &SQLClient{Driver: DriverPostgres}
	lite := &SQLClient{Driver: DriverSQLite}

	q := "UPDATE t SET a = ? WHERE b = ? AND c = ?"
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2 AND c = $3", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMigrate_SQLite(t *testing.T) {
	client, err := NewSQLiteMemory()
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Migrate(ctx))
	require.NoError(t, client.Migrate(ctx))

	var n int
	err = client.QueryRow(ctx, "SELECT COUNT(*) FROM idempotency_records WHERE scope = ?", "default").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExec_RebindsForPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := NewSQLClient(db, DriverPostgres)
	mock.ExpectExec(`DELETE FROM audit_records WHERE id = \$1`).
		WithArgs("a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = client.Exec(context.Background(), "DELETE FROM audit_records WHERE id = ?", "a-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}
