package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store defines the interface for the contribution cache. Redirect status
// is deliberately absent: it cannot be cached because other users may turn
// a page into a redirect between runs.
type Store interface {
	LoadContributions(ctx context.Context, user string, start, end time.Time) ([]Contrib, error)
	SaveContributions(ctx context.Context, contribs []Contrib, texts map[TextKey]string) error
	GetText(ctx context.Context, revID int64, site string) (string, bool, error)
	GetStats(ctx context.Context) (*Stats, error)
	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	loadContribs  *sql.Stmt
	insertContrib *sql.Stmt
	insertText    *sql.Stmt
	getText       *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.loadContribs, err = s.db.Prepare(`
		SELECT revid, site, parentid, user, page, ts, size, parentsize
		FROM contribs
		WHERE user = ? AND ts >= ? AND ts <= ?
		ORDER BY revid
	`)
	if err != nil {
		return err
	}

	s.insertContrib, err = s.db.Prepare(`
		INSERT OR IGNORE INTO contribs (revid, site, parentid, user, page, ts, size, parentsize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertText, err = s.db.Prepare(`
		INSERT OR IGNORE INTO fulltexts (revid, site, revtxt)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getText, err = s.db.Prepare(`
		SELECT revtxt FROM fulltexts WHERE revid = ? AND site = ?
	`)
	if err != nil {
		return err
	}

	return nil
}

// formatTimestamp renders a timestamp the way it is stored: UTC RFC3339.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// LoadContributions returns the cached revisions made by user within
// [start, end], ordered by revision id. No network access is involved.
func (s *SQLiteStore) LoadContributions(ctx context.Context, user string, start, end time.Time) ([]Contrib, error) {
	rows, err := s.loadContribs.QueryContext(ctx, user, formatTimestamp(start), formatTimestamp(end))
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var contribs []Contrib
	for rows.Next() {
		var c Contrib
		var tsStr string
		if err := rows.Scan(
			&c.RevID, &c.Site, &c.ParentID, &c.User, &c.Page,
			&tsStr, &c.Size, &c.ParentSize,
		); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.Timestamp, _ = parseTimestamp(tsStr)
		contribs = append(contribs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice rather than nil
	if contribs == nil {
		contribs = []Contrib{}
	}

	return contribs, nil
}

// SaveContributions writes revisions and fulltexts in a single transaction.
// Inserts are INSERT OR IGNORE on the (revid, site) key, so re-running a
// reconciliation against an already-populated cache is a no-op.
func (s *SQLiteStore) SaveContributions(ctx context.Context, contribs []Contrib, texts map[TextKey]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range contribs {
		_, err := tx.StmtContext(ctx, s.insertContrib).ExecContext(ctx,
			c.RevID, c.Site, c.ParentID, c.User, c.Page,
			formatTimestamp(c.Timestamp), c.Size, c.ParentSize,
		)
		if err != nil {
			return fmt.Errorf("insert contribution %d@%s: %w", c.RevID, c.Site, err)
		}
	}

	for key, text := range texts {
		if text == "" {
			continue
		}
		_, err := tx.StmtContext(ctx, s.insertText).ExecContext(ctx, key.RevID, key.Site, text)
		if err != nil {
			return fmt.Errorf("insert fulltext %d@%s: %w", key.RevID, key.Site, err)
		}
	}

	return tx.Commit()
}

// GetText retrieves the stored fulltext of a revision. The second return
// value reports whether a text was found.
func (s *SQLiteStore) GetText(ctx context.Context, revID int64, site string) (string, bool, error) {
	var text string
	err := s.getText.QueryRowContext(ctx, revID, site).Scan(&text)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get fulltext: %w", err)
	}
	return text, true, nil
}

// PurgeAll deletes all cached contributions and fulltexts.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM fulltexts",
		"DELETE FROM contribs",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// GetStats returns aggregate statistics about the cache.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contribs").Scan(&stats.TotalContribs)
	if err != nil {
		return nil, fmt.Errorf("count contributions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fulltexts").Scan(&stats.TotalTexts)
	if err != nil {
		return nil, fmt.Errorf("count fulltexts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT user) FROM contribs").Scan(&stats.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalContribs > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM contribs").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("contribution time range: %w", err)
		}
		stats.OldestContrib, _ = parseTimestamp(oldestStr)
		stats.NewestContrib, _ = parseTimestamp(newestStr)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT site, page, COUNT(*) as cnt FROM contribs GROUP BY site, page ORDER BY cnt DESC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pc PageCount
		if err := rows.Scan(&pc.Site, &pc.Page, &pc.Count); err != nil {
			return nil, err
		}
		stats.TopPages = append(stats.TopPages, pc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed — that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.loadContribs, s.insertContrib, s.insertText, s.getText,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
