package contest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/mediawiki"
	"github.com/runnerr0/wikiscore/internal/storage"
)

// IntegrityError reports that the source returned metadata for fewer
// revisions than were requested. Partial, silently-incomplete data is
// never accepted; this error aborts processing of the current user.
type IntegrityError struct {
	Site string
	Want int
	Got  int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("site %s returned metadata for %d of %d new revisions", e.Site, e.Got, e.Want)
}

// Aggregator reconciles a user's cached contributions with the live wiki
// API: cache first, then the source, then the completed view is persisted
// back before filtering begins.
type Aggregator struct {
	store     storage.Store
	sites     map[string]mediawiki.Client
	log       *zap.Logger
	fetchText bool
	namespace int
}

// NewAggregator creates an aggregator over the given cache and sites.
func NewAggregator(store storage.Store, sites map[string]mediawiki.Client, fetchText bool, namespace int, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		store:     store,
		sites:     sites,
		log:       log,
		fetchText: fetchText,
		namespace: namespace,
	}
}

// Reconcile populates the user's articles for the [start, end] window:
// prior contributions from the cache, new ones from every configured site,
// redirect flags re-checked, revision and parent metadata fetched, and the
// result written back to the cache in one transaction per user.
func (a *Aggregator) Reconcile(ctx context.Context, user *User, start, end time.Time) error {
	if err := a.loadFromCache(ctx, user, start, end); err != nil {
		return fmt.Errorf("loading cached contributions: %w", err)
	}

	// Deterministic site order.
	siteKeys := make([]string, 0, len(a.sites))
	for key := range a.sites {
		siteKeys = append(siteKeys, key)
	}
	sort.Strings(siteKeys)

	for _, siteKey := range siteKeys {
		if err := a.reconcileSite(ctx, user, siteKey, a.sites[siteKey], start, end); err != nil {
			return fmt.Errorf("reconciling site %s: %w", siteKey, err)
		}
	}

	if err := a.saveToCache(ctx, user); err != nil {
		return fmt.Errorf("saving contributions: %w", err)
	}

	user.SortContribs()
	return nil
}

// loadFromCache populates the user from the contribution cache. No network
// access is involved.
func (a *Aggregator) loadFromCache(ctx context.Context, user *User, start, end time.Time) error {
	rows, err := a.store.LoadContributions(ctx, user.Name, start, end)
	if err != nil {
		return err
	}

	var nrevs, narts int
	for _, row := range rows {
		article := user.Article(row.Site, row.Page)
		if article == nil {
			article = user.EnsureArticle(row.Site, row.Page)
			narts++
		}

		if article.Revision(row.RevID) != nil {
			continue
		}

		rev := &Revision{
			Site:       row.Site,
			RevID:      row.RevID,
			ParentID:   row.ParentID,
			Timestamp:  row.Timestamp,
			Size:       row.Size,
			ParentSize: row.ParentSize,
		}

		if text, ok, err := a.store.GetText(ctx, row.RevID, row.Site); err != nil {
			return err
		} else if ok {
			rev.Text = text
		}

		if !rev.New() {
			if text, ok, err := a.store.GetText(ctx, row.ParentID, row.Site); err != nil {
				return err
			} else if ok {
				rev.ParentText = text
			}
		}

		article.AddRevision(rev)
		nrevs++
	}

	user.SortContribs()
	if nrevs > 0 || narts > 0 {
		a.log.Info("loaded contributions from cache",
			zap.String("user", user.Name),
			zap.Int("revisions", nrevs),
			zap.Int("articles", narts),
		)
	}
	return nil
}

// reconcileSite extends the user's view with fresh data from one site.
func (a *Aggregator) reconcileSite(ctx context.Context, user *User, siteKey string, client mediawiki.Client, start, end time.Time) error {
	// 1) List user contributions and record unseen revisions.
	contribs, err := client.UserContribs(ctx, user.Name, start, end, a.namespace)
	if err != nil {
		return err
	}

	var newRevs []*Revision
	var narts int
	for _, c := range contribs {
		article := user.Article(siteKey, c.Title)
		if article == nil {
			article = user.EnsureArticle(siteKey, c.Title)
			narts++
		}
		if article.Revision(c.RevID) != nil {
			continue
		}
		rev := &Revision{
			Site:      siteKey,
			RevID:     c.RevID,
			Timestamp: c.Timestamp,
		}
		article.AddRevision(rev)
		newRevs = append(newRevs, rev)
	}
	user.SortContribs()

	if len(newRevs) > 0 || narts > 0 {
		a.log.Info("added contributions from api",
			zap.String("site", siteKey),
			zap.String("user", user.Name),
			zap.Int("revisions", len(newRevs)),
			zap.Int("articles", narts),
		)
	}

	// 2) Re-check redirect status for every article on this site. A missed
	// redirect would double-count contributions, and the flag cannot be
	// trusted from the cache.
	var titles []string
	for _, article := range user.Articles {
		if article.Site == siteKey {
			titles = append(titles, article.Title)
		}
	}
	if len(titles) > 0 {
		flags, err := client.Redirects(ctx, titles)
		if err != nil {
			return err
		}
		for _, article := range user.Articles {
			if article.Site == siteKey {
				article.Redirect = flags[article.Title]
			}
		}
	}

	if len(newRevs) == 0 {
		return nil
	}

	// 3) Fetch metadata for the new revisions.
	ids := make([]int64, 0, len(newRevs))
	for _, rev := range newRevs {
		ids = append(ids, rev.RevID)
	}

	metas, err := client.RevisionMeta(ctx, ids, a.fetchText)
	if err != nil {
		return err
	}

	var fetched int
	var parentIDs []int64
	parentOf := make(map[int64]*Revision)
	for _, rev := range newRevs {
		meta, ok := metas[rev.RevID]
		if !ok {
			continue
		}
		fetched++
		rev.ParentID = meta.ParentID
		rev.Size = meta.Size
		rev.Text = meta.Content
		if !rev.New() {
			parentIDs = append(parentIDs, rev.ParentID)
			parentOf[rev.ParentID] = rev
		}
	}

	if fetched != len(newRevs) {
		return &IntegrityError{Site: siteKey, Want: len(newRevs), Got: fetched}
	}

	// 4) Fetch metadata for the parent revisions.
	if len(parentIDs) > 0 {
		parentMetas, err := client.RevisionMeta(ctx, parentIDs, a.fetchText)
		if err != nil {
			return err
		}
		for parentID, rev := range parentOf {
			meta, ok := parentMetas[parentID]
			if !ok {
				a.log.Warn("parent revision metadata missing",
					zap.String("site", siteKey),
					zap.Int64("parentid", parentID),
					zap.Int64("revid", rev.RevID),
				)
				continue
			}
			rev.ParentSize = meta.Size
			rev.ParentText = meta.Content
		}
		a.log.Info("checked parent revisions",
			zap.String("site", siteKey),
			zap.Int("count", len(parentIDs)),
		)
	}

	user.SortContribs()
	return nil
}

// saveToCache persists every revision (and any fetched fulltext) back to
// the cache. Inserts are idempotent on (revid, site).
func (a *Aggregator) saveToCache(ctx context.Context, user *User) error {
	var contribs []storage.Contrib
	texts := make(map[storage.TextKey]string)

	for _, article := range user.Articles {
		for _, rev := range article.Revisions {
			contribs = append(contribs, storage.Contrib{
				RevID:      rev.RevID,
				Site:       rev.Site,
				ParentID:   rev.ParentID,
				User:       user.Name,
				Page:       article.Title,
				Timestamp:  rev.Timestamp,
				Size:       rev.Size,
				ParentSize: rev.ParentSize,
			})
			if rev.Text != "" {
				texts[storage.TextKey{RevID: rev.RevID, Site: rev.Site}] = rev.Text
			}
			if rev.ParentText != "" && !rev.New() {
				texts[storage.TextKey{RevID: rev.ParentID, Site: rev.Site}] = rev.ParentText
			}
		}
	}

	if len(contribs) == 0 {
		return nil
	}
	return a.store.SaveContributions(ctx, contribs, texts)
}
