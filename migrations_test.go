package livechat_test

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"

	"github.com/coregx/livechat"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_CoverSupportedDrivers(t *testing.T) {
	for _, driver := range livechat.SupportedDrivers {
		matches, err := fs.Glob(livechat.MigrationFiles, "migrations/"+driver+"/*.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, matches, driver)
	}
}

func TestApplyMigrations_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	// Every pooled connection would get its own in-memory database.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, livechat.ApplyMigrations(ctx, db, "sqlite3"))
	require.NoError(t, livechat.ApplyMigrations(ctx, db, "sqlite3"), "migrations are idempotent")

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'livechat_%' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"livechat_device_token", "livechat_message"}, tables)
}

func TestApplyMigrations_UnknownDriver(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = livechat.ApplyMigrations(context.Background(), db, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), livechat.ErrCodeConfiguration)
	assert.Contains(t, err.Error(), "oracle")
}
