package storage

import "database/sql"

// migrateV001 creates the contribution cache schema: the contribs table
// holding per-revision metadata and the fulltexts table holding lazily
// fetched revision texts, both keyed by (revid, site). Every statement
// uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contribs (
			revid      INTEGER NOT NULL,
			site       TEXT NOT NULL,
			parentid   INTEGER NOT NULL DEFAULT 0,
			user       TEXT NOT NULL,
			page       TEXT NOT NULL,
			ts         DATETIME NOT NULL,
			size       INTEGER NOT NULL DEFAULT 0,
			parentsize INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (revid, site)
		)`,

		`CREATE TABLE IF NOT EXISTS fulltexts (
			revid      INTEGER NOT NULL,
			site       TEXT NOT NULL,
			revtxt     TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (revid, site)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_contribs_user_ts ON contribs(user, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_contribs_ts      ON contribs(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_contribs_page    ON contribs(site, page)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
