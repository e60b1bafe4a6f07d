// Package contest holds the contribution data model — users, articles,
// revisions — and the aggregator that reconciles the local cache with the
// live wiki API into one consistent, deduplicated, sorted view.
package contest

import (
	"fmt"
	"sort"
	"time"
)

// Revision is one saved edit of an article. A revision is uniquely
// identified by (site, revision id). ParentID 0 means the revision created
// the article; such a revision always has ParentSize 0.
type Revision struct {
	Site       string
	RevID      int64
	ParentID   int64
	Timestamp  time.Time
	Size       int64
	ParentSize int64

	// Text and ParentText are populated only when fulltext fetching was
	// requested (or the texts were already cached).
	Text       string
	ParentText string
}

// New reports whether this revision created its article.
func (r *Revision) New() bool {
	return r.ParentID == 0
}

// Bytes is the byte delta of this revision. Negative when content was
// removed.
func (r *Revision) Bytes() int64 {
	return r.Size - r.ParentSize
}

// Article is a named page on a given site, tracked by its revisions.
type Article struct {
	Site  string
	Title string

	// Redirect is re-checked on every run; it cannot be trusted from the
	// cache because other users may turn the page into a redirect.
	Redirect bool

	// Revisions sorted ascending by revision id.
	Revisions []*Revision

	Points    float64
	Breakdown []string

	// CategoryPath and Errors are populated by the category filter stage
	// for matched articles only.
	CategoryPath []string
	Errors       []string
}

// Key returns the composite article key "site:title".
func Key(site, title string) string {
	return site + ":" + title
}

// Key returns this article's composite key.
func (a *Article) Key() string {
	return Key(a.Site, a.Title)
}

// Revision returns the revision with the given id, or nil.
func (a *Article) Revision(revID int64) *Revision {
	for _, r := range a.Revisions {
		if r.RevID == revID {
			return r
		}
	}
	return nil
}

// AddRevision appends a revision. Ordering must be re-established with
// SortRevisions (or User.SortContribs) before consumers read it.
func (a *Article) AddRevision(r *Revision) {
	a.Revisions = append(a.Revisions, r)
}

// SortRevisions orders revisions ascending by revision id.
func (a *Article) SortRevisions() {
	sort.Slice(a.Revisions, func(i, j int) bool {
		return a.Revisions[i].RevID < a.Revisions[j].RevID
	})
}

// First returns the earliest revision, or nil for an empty article.
func (a *Article) First() *Revision {
	if len(a.Revisions) == 0 {
		return nil
	}
	return a.Revisions[0]
}

// Last returns the latest revision, or nil for an empty article.
func (a *Article) Last() *Revision {
	if len(a.Revisions) == 0 {
		return nil
	}
	return a.Revisions[len(a.Revisions)-1]
}

// New reports whether the article was created within the aggregated window:
// true iff its earliest revision has no parent.
func (a *Article) New() bool {
	first := a.First()
	return first != nil && first.New()
}

// Bytes is the total byte delta over all revisions.
func (a *Article) Bytes() int64 {
	var total int64
	for _, r := range a.Revisions {
		total += r.Bytes()
	}
	return total
}

// User owns the articles touched by one participant, plus derived totals
// recomputed on each analysis pass.
type User struct {
	Name     string
	Articles []*Article
	Points   float64
	Bytes    int64
}

// NewUser creates an empty user.
func NewUser(name string) *User {
	return &User{Name: name}
}

// Article returns the article with the given site and title, or nil.
func (u *User) Article(site, title string) *Article {
	for _, a := range u.Articles {
		if a.Site == site && a.Title == title {
			return a
		}
	}
	return nil
}

// EnsureArticle returns the article with the given site and title,
// creating it if unseen.
func (u *User) EnsureArticle(site, title string) *Article {
	if a := u.Article(site, title); a != nil {
		return a
	}
	a := &Article{Site: site, Title: title}
	u.Articles = append(u.Articles, a)
	return a
}

// Revisions returns a flat list of all the user's revisions.
func (u *User) Revisions() []*Revision {
	var revs []*Revision
	for _, a := range u.Articles {
		revs = append(revs, a.Revisions...)
	}
	return revs
}

// SortContribs re-establishes the ordering contract: revisions ascending
// by revision id within each article, articles ascending by their earliest
// revision id. Must be called after every mutation pass.
func (u *User) SortContribs() {
	for _, a := range u.Articles {
		a.SortRevisions()
	}
	sort.Slice(u.Articles, func(i, j int) bool {
		fi, fj := u.Articles[i].First(), u.Articles[j].First()
		if fi == nil || fj == nil {
			return fj == nil && fi != nil
		}
		return fi.RevID < fj.RevID
	})
}

// Diagnostic is a recoverable per-item anomaly recorded during a run:
// a stub parse failure, a category traversal cycle.
type Diagnostic struct {
	Article string
	Message string
}

// Diagnostics accumulates per-item anomalies threaded alongside the
// normal result. Fatal errors do not land here; they unwind immediately.
type Diagnostics struct {
	items []Diagnostic
}

// Add records a diagnostic for the given article key.
func (d *Diagnostics) Add(article, format string, args ...interface{}) {
	d.items = append(d.items, Diagnostic{
		Article: article,
		Message: fmt.Sprintf(format, args...),
	})
}

// Items returns all recorded diagnostics in order.
func (d *Diagnostics) Items() []Diagnostic {
	return d.items
}

// Empty reports whether no diagnostics were recorded.
func (d *Diagnostics) Empty() bool {
	return len(d.items) == 0
}
