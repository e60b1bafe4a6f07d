package cli

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/category"
	"github.com/runnerr0/wikiscore/internal/config"
	"github.com/runnerr0/wikiscore/internal/mediawiki"
	"github.com/runnerr0/wikiscore/internal/storage"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1572864))
}

func TestValidateContest(t *testing.T) {
	start := time.Date(2012, 7, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2012, 7, 8, 23, 59, 0, 0, time.UTC)

	valid := config.DefaultConfig()
	valid.Contest.Start = start
	valid.Contest.End = end
	valid.Contest.Participants = []string{"Alice"}
	require.NoError(t, validateContest(valid))

	noWindow := config.DefaultConfig()
	noWindow.Contest.Participants = []string{"Alice"}
	assert.Error(t, validateContest(noWindow))

	reversed := config.DefaultConfig()
	reversed.Contest.Start = end
	reversed.Contest.End = start
	reversed.Contest.Participants = []string{"Alice"}
	assert.Error(t, validateContest(reversed))

	noUsers := config.DefaultConfig()
	noUsers.Contest.Start = start
	noUsers.Contest.End = end
	assert.Error(t, validateContest(noUsers))

	noSites := config.DefaultConfig()
	noSites.Contest.Start = start
	noSites.Contest.End = end
	noSites.Contest.Participants = []string{"Alice"}
	noSites.Sites = nil
	assert.Error(t, validateContest(noSites))
}

func TestBuildParser_RegistersCommands(t *testing.T) {
	parser, globals, cmds := buildParser("test")
	require.NotNil(t, globals)
	require.NotNil(t, cmds)

	for _, name := range []string{"run", "status", "purge"} {
		assert.NotNil(t, parser.Find(name), "command %s should be registered", name)
	}
}

// fakeClient serves a single user's edits from memory for run tests.
type fakeClient struct {
	contribs  []mediawiki.Contrib
	metas     map[int64]mediawiki.RevisionMeta
	redirects map[string]bool
}

func (f *fakeClient) UserContribs(ctx context.Context, user string, start, end time.Time, ns int) ([]mediawiki.Contrib, error) {
	return f.contribs, nil
}

func (f *fakeClient) RevisionMeta(ctx context.Context, ids []int64, withText bool) (map[int64]mediawiki.RevisionMeta, error) {
	out := make(map[int64]mediawiki.RevisionMeta)
	for _, id := range ids {
		if meta, ok := f.metas[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

func (f *fakeClient) Redirects(ctx context.Context, titles []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, title := range titles {
		out[title] = f.redirects[title]
	}
	return out, nil
}

func (f *fakeClient) Categories(ctx context.Context, titles []string, cont string) (map[string][]string, string, error) {
	return nil, "", nil
}

func (f *fakeClient) PageLimit() int { return 50 }

func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestExecuteRun_ScoresAndRendersReport(t *testing.T) {
	start := time.Date(2012, 7, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2012, 7, 8, 23, 59, 0, 0, time.UTC)

	cfg := config.DefaultConfig()
	cfg.Sites = map[string]config.SiteConfig{"no": {APIURL: "unused", PageLimit: 50}}
	cfg.Contest.Start = start
	cfg.Contest.End = end
	cfg.Contest.Participants = []string{"Alice", "Bob"}
	cfg.Contest.FetchText = true
	cfg.Contest.Filters = []config.FilterSpec{
		{Kind: "new"},
		{Kind: "bytes", Bytes: 150},
	}
	cfg.Contest.Rules = []config.RuleSpec{
		{Kind: "byte", Points: 0.01, MaxPoints: 10},
		{Kind: "new", Points: 2},
	}

	client := &fakeClient{
		contribs: []mediawiki.Contrib{
			{RevID: 100, Title: "Giraffe", Timestamp: start.Add(10 * time.Hour)},
		},
		metas: map[int64]mediawiki.RevisionMeta{
			100: {RevID: 100, ParentID: 0, Size: 500, Title: "Giraffe", Content: "a fine article"},
		},
		redirects: map[string]bool{},
	}

	store := openTestStore(t)
	out, err := executeRun(context.Background(), cfg, store,
		map[string]mediawiki.Client{"no": client},
		map[string]category.Source{"no": client},
		zap.NewNop())
	require.NoError(t, err)

	// Alice: 500 bytes at 0.01 p/byte plus the 2 p creation bonus.
	assert.Contains(t, out, "=== [[User:Alice|Alice]] (7 p) ===")
	assert.Contains(t, out, "# [[no:Giraffe|Giraffe]] (7.0 p)")
	assert.Contains(t, out, "500 bytes (5.0 p) + new page (2.0 p)")

	// Bob made no edits but still gets a section, after Alice.
	assert.Contains(t, out, "=== [[User:Bob|Bob]] (0 p) ===")
	assert.Less(t, strings.Index(out, "Alice"), strings.Index(out, "Bob"))

	assert.Contains(t, out, "{{Contest robot info | ok |")
}
