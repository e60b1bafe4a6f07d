// Package filter narrows an aggregated article set down to the edits that
// qualify for a competition. Stages compose left to right in declared
// order; every stage's output is a subset of its input.
package filter

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/category"
	"github.com/runnerr0/wikiscore/internal/config"
	"github.com/runnerr0/wikiscore/internal/contest"
)

// stubSizeGuard skips stub detection on articles whose parent text exceeds
// this many bytes; they cannot plausibly be stubs and parsing them is slow.
const stubSizeGuard = 20000

// defaultStubPattern matches the stub marker templates used on the wikis.
const defaultStubPattern = `(?i)\{\{[^}]*(?:stub|spire)[^}]*\}\}`

// Filter is one stage of the qualification chain.
type Filter interface {
	Name() string
	Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error)
}

// Deps carries the collaborators filter stages may need.
type Deps struct {
	Sources        map[string]category.Source
	IgnorePatterns []string
	Diags          *contest.Diagnostics
	Log            *zap.Logger
}

// FromSpec builds one filter stage from its configuration entry. Unknown
// kinds and missing parameters are reported here, before any processing.
func FromSpec(spec config.FilterSpec, deps Deps) (Filter, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	switch spec.Kind {
	case "new":
		return &NewPageFilter{}, nil

	case "existing":
		return &ExistingPageFilter{}, nil

	case "bytes":
		if spec.Bytes <= 0 {
			return nil, fmt.Errorf("bytes filter requires a positive byte threshold")
		}
		return &ByteFilter{Limit: spec.Bytes}, nil

	case "stub":
		pattern := spec.StubPattern
		if pattern == "" {
			pattern = defaultStubPattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid stub pattern %q: %w", pattern, err)
		}
		return &StubFilter{pattern: re, diags: deps.Diags, log: log}, nil

	case "category":
		if len(spec.Categories) == 0 {
			return nil, fmt.Errorf("category filter requires at least one category name")
		}
		resolver, err := category.NewResolver(deps.Sources, spec.Categories, deps.IgnorePatterns, spec.MaxDepth, log)
		if err != nil {
			return nil, err
		}
		return &CategoryFilter{resolver: resolver, diags: deps.Diags, log: log}, nil

	default:
		return nil, fmt.Errorf("unknown filter kind %q", spec.Kind)
	}
}

// FromSpecs builds the full ordered chain.
func FromSpecs(specs []config.FilterSpec, deps Deps) ([]Filter, error) {
	filters := make([]Filter, 0, len(specs))
	for _, spec := range specs {
		f, err := FromSpec(spec, deps)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// Run applies the chain in order, logging the narrowing at each stage.
func Run(ctx context.Context, filters []Filter, articles []*contest.Article, log *zap.Logger) ([]*contest.Article, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, f := range filters {
		before := len(articles)
		out, err := f.Apply(ctx, articles)
		if err != nil {
			return nil, fmt.Errorf("%s filter: %w", f.Name(), err)
		}
		log.Info("applied filter",
			zap.String("filter", f.Name()),
			zap.Int("in", before),
			zap.Int("out", len(out)),
		)
		articles = out
	}
	return articles, nil
}

// NewPageFilter keeps articles created within the window that are not
// currently redirects.
type NewPageFilter struct{}

func (f *NewPageFilter) Name() string { return "new" }

func (f *NewPageFilter) Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error) {
	var out []*contest.Article
	for _, a := range articles {
		if a.New() && !a.Redirect {
			out = append(out, a)
		}
	}
	return out, nil
}

// ExistingPageFilter keeps articles that existed before the window.
type ExistingPageFilter struct{}

func (f *ExistingPageFilter) Name() string { return "existing" }

func (f *ExistingPageFilter) Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error) {
	var out []*contest.Article
	for _, a := range articles {
		if !a.New() {
			out = append(out, a)
		}
	}
	return out, nil
}

// ByteFilter keeps articles whose total byte delta meets the threshold.
type ByteFilter struct {
	Limit int64
}

func (f *ByteFilter) Name() string { return "bytes" }

func (f *ByteFilter) Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error) {
	var out []*contest.Article
	for _, a := range articles {
		if a.Bytes() >= f.Limit {
			out = append(out, a)
		}
	}
	return out, nil
}

// StubFilter keeps articles that were stubs before the window and no
// longer are. A detection failure on one article drops that article and
// records a diagnostic without aborting the pipeline.
type StubFilter struct {
	pattern *regexp.Regexp
	diags   *contest.Diagnostics
	log     *zap.Logger
}

func (f *StubFilter) Name() string { return "stub" }

// isStub checks whether a wikitext carries a stub marker template.
func (f *StubFilter) isStub(text string) bool {
	return f.pattern.MatchString(text)
}

func (f *StubFilter) Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error) {
	var out []*contest.Article
	for _, a := range articles {
		first, last := a.First(), a.Last()
		if first == nil || a.New() || a.Redirect {
			continue
		}
		// Long pages cannot plausibly be stubs; skip them entirely.
		if len(first.ParentText) >= stubSizeGuard {
			continue
		}

		// Detection needs both texts. Missing text is isolated to this
		// article: drop it and record which revisions were involved.
		if (first.ParentSize > 0 && first.ParentText == "") || (last.Size > 0 && last.Text == "") {
			if f.diags != nil {
				f.diags.Add(a.Key(),
					"cannot check stub status: text unavailable for revision %d or %d",
					first.ParentID, last.RevID)
			}
			f.log.Warn("stub check skipped, text unavailable",
				zap.String("article", a.Key()),
				zap.Int64("parentid", first.ParentID),
				zap.Int64("revid", last.RevID),
			)
			continue
		}

		if f.isStub(first.ParentText) && !f.isStub(last.Text) {
			out = append(out, a)
		}
	}
	return out, nil
}

// CategoryFilter keeps articles matched by the category graph resolver and
// decorates survivors with their category path. A per-article traversal
// cycle does not remove the article.
type CategoryFilter struct {
	resolver *category.Resolver
	diags    *contest.Diagnostics
	log      *zap.Logger
}

func (f *CategoryFilter) Name() string { return "category" }

func (f *CategoryFilter) Apply(ctx context.Context, articles []*contest.Article) ([]*contest.Article, error) {
	result, err := f.resolver.Resolve(ctx, articles)
	if err != nil {
		return nil, err
	}

	var out []*contest.Article
	for _, a := range articles {
		key := a.Key()
		if _, ok := result.Matches[key]; !ok {
			continue
		}
		a.CategoryPath = result.Paths[key]
		for _, msg := range result.Errors[key] {
			a.Errors = append(a.Errors, msg)
			if f.diags != nil {
				f.diags.Add(key, "%s", msg)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
