// Package category resolves category membership for a set of articles by
// breadth-first traversal of the live category graph. The graph is built
// fresh for each invocation and discarded afterwards; cycles are handled
// by bounded iteration, never by unbounded recursion.
package category

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/contest"
)

// cycleGuard bounds the parent-pointer walk during path reconstruction.
// A walk exceeding it has entered a category loop.
const cycleGuard = 50

// Source is the slice of the wiki API the resolver needs: paginated
// category edges for a batch of titles.
type Source interface {
	Categories(ctx context.Context, titles []string, cont string) (map[string][]string, string, error)
	PageLimit() int
}

// Result is the outcome of one resolution pass. Articles absent from
// Matches did not match any include name and carry no path and no errors.
type Result struct {
	// Matches maps article key to the include name that matched.
	Matches map[string]string
	// Paths maps article key to the category chain from the matched
	// category down to (but not including) the article title.
	Paths map[string][]string
	// Errors maps article key to traversal anomalies (category loops).
	Errors map[string][]string
}

// Resolver performs breadth-limited category graph traversal.
type Resolver struct {
	sources  map[string]Source
	include  []string
	ignore   []*regexp.Regexp
	maxDepth int
	log      *zap.Logger
}

// NewResolver creates a resolver over the given per-site sources. include
// holds the category names to match; ignorePatterns holds regexes for
// categories that must be dropped and never expanded.
func NewResolver(sources map[string]Source, include []string, ignorePatterns []string, maxDepth int, log *zap.Logger) (*Resolver, error) {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	if log == nil {
		log = zap.NewNop()
	}

	ignore := make([]*regexp.Regexp, 0, len(ignorePatterns))
	for _, pat := range ignorePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pat, err)
		}
		ignore = append(ignore, re)
	}

	return &Resolver{
		sources:  sources,
		include:  include,
		ignore:   ignore,
		maxDepth: maxDepth,
		log:      log,
	}, nil
}

// shortName strips the namespace prefix from a category title:
// "Category:Mammals" becomes "Mammals".
func shortName(title string) string {
	if i := strings.Index(title, ":"); i >= 0 {
		return title[i+1:]
	}
	return title
}

// ignored reports whether a category short name matches any ignore pattern.
func (r *Resolver) ignored(catShort string) bool {
	for _, re := range r.ignore {
		if re.MatchString(catShort) {
			return true
		}
	}
	return false
}

// Resolve determines, for every input article, whether any include name
// appears within maxDepth levels of its category graph. Pagination errors
// propagate as fatal: the resolver never produces a partial, silently
// wrong membership decision.
func (r *Resolver) Resolve(ctx context.Context, articles []*contest.Article) (*Result, error) {
	// cats[articleKey][level] holds the category short names reached at
	// that level; parents[articleKey][cat] points one level closer to the
	// article (the article title itself at level 0).
	cats := make(map[string][]map[string]bool, len(articles))
	parents := make(map[string]map[string]string, len(articles))
	for _, a := range articles {
		levels := make([]map[string]bool, r.maxDepth)
		for i := range levels {
			levels[i] = make(map[string]bool)
		}
		cats[a.Key()] = levels
		parents[a.Key()] = make(map[string]string)
	}

	// Traverse per site: category edges never cross sites.
	bySite := make(map[string][]*contest.Article)
	for _, a := range articles {
		bySite[a.Site] = append(bySite[a.Site], a)
	}
	siteKeys := make([]string, 0, len(bySite))
	for key := range bySite {
		siteKeys = append(siteKeys, key)
	}
	sort.Strings(siteKeys)

	for _, siteKey := range siteKeys {
		source, ok := r.sources[siteKey]
		if !ok {
			return nil, fmt.Errorf("no category source for site %s", siteKey)
		}
		if err := r.traverseSite(ctx, siteKey, source, bySite[siteKey], cats, parents); err != nil {
			return nil, err
		}
	}

	return r.collect(articles, cats, parents), nil
}

// traverseSite expands the category graph level by level for one site's
// articles, recording per-level memberships and parent pointers.
func (r *Resolver) traverseSite(ctx context.Context, siteKey string, source Source, articles []*contest.Article, cats map[string][]map[string]bool, parents map[string]map[string]string) error {
	// Level 0 queries the articles themselves; later levels query the
	// categories discovered one level down.
	frontier := make([]string, 0, len(articles))
	articleOf := make(map[string]string, len(articles)) // page title -> article key
	for _, a := range articles {
		frontier = append(frontier, a.Title)
		articleOf[a.Title] = a.Key()
	}

	limit := source.PageLimit()
	if limit <= 0 {
		limit = 50
	}

	for level := 0; level < r.maxDepth; level++ {
		next := make(map[string]bool)

		for start := 0; start < len(frontier); start += limit {
			stop := start + limit
			if stop > len(frontier) {
				stop = len(frontier)
			}
			batch := frontier[start:stop]

			// Keep requesting with the continuation cursor until the
			// source signals no further continuation.
			cont := ""
			for {
				edges, nextCont, err := source.Categories(ctx, batch, cont)
				if err != nil {
					return fmt.Errorf("site %s level %d: %w", siteKey, level, err)
				}

				for pageTitle, catTitles := range edges {
					pageShort := shortName(pageTitle)
					for _, catTitle := range catTitles {
						catShort := shortName(catTitle)
						if r.ignored(catShort) {
							continue
						}
						next[catTitle] = true

						if level == 0 {
							key, ok := articleOf[pageTitle]
							if !ok {
								continue
							}
							cats[key][0][catShort] = true
							if _, ok := parents[key][catShort]; !ok {
								parents[key][catShort] = pageTitle
							}
						} else {
							// Associate the parent category with every
							// article that reached the child category at
							// the previous level. First writer wins on
							// the parent pointer.
							for key, levels := range cats {
								if levels[level-1][pageShort] {
									levels[level][catShort] = true
									if _, ok := parents[key][catShort]; !ok {
										parents[key][catShort] = pageShort
									}
								}
							}
						}
					}
				}

				cont = nextCont
				if cont == "" {
					break
				}
			}
		}

		// Deduplicated frontier for the next level: a category reached
		// via multiple articles or parents is queried once.
		frontier = frontier[:0]
		for title := range next {
			frontier = append(frontier, title)
		}
		sort.Strings(frontier)

		r.log.Debug("category level traversed",
			zap.String("site", siteKey),
			zap.Int("level", level),
			zap.Int("categories", len(frontier)),
		)

		if len(frontier) == 0 {
			break
		}
	}

	return nil
}

// match returns the include name an article matched, if any. The tie-break
// is deterministic: the lowest level wins, and within a level the
// lexicographically smallest include name.
func (r *Resolver) match(levels []map[string]bool) (string, bool) {
	for _, level := range levels {
		best := ""
		for _, inc := range r.include {
			if level[inc] && (best == "" || inc < best) {
				best = inc
			}
		}
		if best != "" {
			return best, true
		}
	}
	return "", false
}

// collect builds the Result: matched articles, their reconstructed paths,
// and any category loop diagnostics.
func (r *Resolver) collect(articles []*contest.Article, cats map[string][]map[string]bool, parents map[string]map[string]string) *Result {
	res := &Result{
		Matches: make(map[string]string),
		Paths:   make(map[string][]string),
		Errors:  make(map[string][]string),
	}

	for _, a := range articles {
		key := a.Key()
		match, ok := r.match(cats[key])
		if !ok {
			continue
		}
		res.Matches[key] = match

		path, loopErr := walkPath(match, a.Title, parents[key])
		res.Paths[key] = path
		if loopErr != "" {
			res.Errors[key] = append(res.Errors[key], loopErr)
		}
	}

	return res
}

// walkPath follows parent pointers from the matched category back to the
// article title, bounded by cycleGuard hops. On a loop it returns the
// partial path followed plus a non-empty diagnostic; the article is still
// considered matched.
func walkPath(match, articleTitle string, parents map[string]string) ([]string, string) {
	path := []string{match}
	cat := match

	for hops := 0; cat != articleTitle; hops++ {
		if hops >= cycleGuard {
			return path, "category loop: " + strings.Join(path, " → ")
		}
		parent, ok := parents[cat]
		if !ok {
			return path, fmt.Sprintf("broken category path at %q", cat)
		}
		if parent != articleTitle {
			path = append(path, parent)
		}
		cat = parent
	}

	return path, ""
}
