package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	for _, table := range []string{"contribs", "fulltexts", "schema_migrations"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_RecordsVersion(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var version int
	var name string
	err := db.QueryRow("SELECT version, name FROM schema_migrations WHERE version = 1").Scan(&version, &name)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "contribution_cache", name)
}

func TestMigrationRunner_Rerun_IsIdempotent(t *testing.T) {
	db := openTestDB(t)

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())
	require.NoError(t, NewMigrationRunner(db).Run())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrationRunner_CompositeKey(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	// Same revid on different sites is allowed; same (revid, site) is not.
	_, err := db.Exec(`INSERT INTO contribs (revid, site, user, page, ts) VALUES (1, 'no', 'A', 'P', '2012-07-02T10:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO contribs (revid, site, user, page, ts) VALUES (1, 'nn', 'A', 'P', '2012-07-02T10:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO contribs (revid, site, user, page, ts) VALUES (1, 'no', 'A', 'P', '2012-07-02T10:00:00Z')`)
	assert.Error(t, err)
}
