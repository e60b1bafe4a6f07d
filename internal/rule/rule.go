// Package rule scores the articles that survived filtering. Rules are
// additive and independent: each non-zero contribution appends one
// human-readable fragment to the article's breakdown.
package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/runnerr0/wikiscore/internal/config"
	"github.com/runnerr0/wikiscore/internal/contest"
)

// imagePattern matches wikitext image inclusions across the site languages.
var imagePattern = regexp.MustCompile(`(?i)\[\[\s*(?:file|image|fil|bilde):`)

// Rule is one scoring function. Score returns the points awarded to the
// article and a human-readable breakdown fragment; both are zero-valued
// when the rule does not apply or cannot evaluate the article.
type Rule interface {
	Score(a *contest.Article) (float64, string)
}

// FromSpec builds one rule from its configuration entry.
func FromSpec(spec config.RuleSpec) (Rule, error) {
	switch spec.Kind {
	case "new":
		return &NewPageRule{Points: spec.Points}, nil
	case "qualified":
		return &QualifiedRule{Points: spec.Points}, nil
	case "byte":
		return &ByteRule{PointsPerByte: spec.Points, MaxPoints: spec.MaxPoints}, nil
	case "word":
		return &WordRule{PointsPerWord: spec.Points, MaxPoints: spec.MaxPoints}, nil
	case "image":
		return &ImageRule{PointsPerImage: spec.Points, MaxPoints: spec.MaxPoints}, nil
	case "bytebonus":
		if spec.High <= spec.Low {
			return nil, fmt.Errorf("bytebonus rule requires low < high, got [%d, %d)", spec.Low, spec.High)
		}
		return &ByteBonusRule{Points: spec.Points, Low: spec.Low, High: spec.High}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}

// FromSpecs builds the full ordered rule chain.
func FromSpecs(specs []config.RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		r, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Apply scores every article of the user and recomputes the derived
// totals. An article's points are the sum of its non-zero contributions;
// the user's points are the sum over articles.
func Apply(u *contest.User, rules []Rule) {
	u.Points = 0
	u.Bytes = 0

	for _, a := range u.Articles {
		a.Points = 0
		a.Breakdown = nil

		for _, r := range rules {
			p, txt := r.Score(a)
			if p != 0 {
				a.Points += p
				a.Breakdown = append(a.Breakdown, txt)
			}
		}

		u.Bytes += a.Bytes()
		u.Points += a.Points
	}
}

// capped applies an optional point cap; MaxPoints 0 means uncapped.
func capped(points, maxPoints float64) (float64, bool) {
	if maxPoints > 0 && points > maxPoints {
		return maxPoints, true
	}
	return points, false
}

// NewPageRule awards a fixed bonus to articles created within the window.
type NewPageRule struct {
	Points float64
}

func (r *NewPageRule) Score(a *contest.Article) (float64, string) {
	if !a.New() {
		return 0, ""
	}
	return r.Points, fmt.Sprintf("new page (%.1f p)", r.Points)
}

// QualifiedRule awards a fixed bonus to articles that qualified without
// being new.
type QualifiedRule struct {
	Points float64
}

func (r *QualifiedRule) Score(a *contest.Article) (float64, string) {
	if a.New() {
		return 0, ""
	}
	return r.Points, fmt.Sprintf("qualified (%.1f p)", r.Points)
}

// ByteRule scales points linearly by the article's byte delta, optionally
// capped.
type ByteRule struct {
	PointsPerByte float64
	MaxPoints     float64
}

func (r *ByteRule) Score(a *contest.Article) (float64, string) {
	bytes := a.Bytes()
	points, wasCapped := capped(float64(bytes)*r.PointsPerByte, r.MaxPoints)
	if points == 0 {
		return 0, ""
	}
	if wasCapped {
		return points, fmt.Sprintf("%d bytes (capped at %.1f p)", bytes, points)
	}
	return points, fmt.Sprintf("%d bytes (%.1f p)", bytes, points)
}

// countWords counts whitespace-separated words.
func countWords(text string) int {
	return len(strings.Fields(text))
}

// textsAvailable reports whether every revision of the article carries the
// texts needed for word/image counting. A revision with recorded size but
// no text means the fulltext was never fetched.
func textsAvailable(a *contest.Article) bool {
	for _, rev := range a.Revisions {
		if rev.Size > 0 && rev.Text == "" {
			return false
		}
		if !rev.New() && rev.ParentSize > 0 && rev.ParentText == "" {
			return false
		}
	}
	return true
}

// WordRule scales points linearly by the number of words added, optionally
// capped. Articles with missing texts are skipped for this rule.
type WordRule struct {
	PointsPerWord float64
	MaxPoints     float64
}

func (r *WordRule) Score(a *contest.Article) (float64, string) {
	if !textsAvailable(a) {
		return 0, ""
	}

	var words int
	for _, rev := range a.Revisions {
		added := countWords(rev.Text) - countWords(rev.ParentText)
		if added > 0 {
			words += added
		}
	}
	if words == 0 {
		return 0, ""
	}

	points, wasCapped := capped(float64(words)*r.PointsPerWord, r.MaxPoints)
	if wasCapped {
		return points, fmt.Sprintf("%d words (capped at %.1f p)", words, points)
	}
	return points, fmt.Sprintf("%d words (%.1f p)", words, points)
}

// ImageRule scales points linearly by the number of images added,
// optionally capped. Articles with missing texts are skipped for this rule.
type ImageRule struct {
	PointsPerImage float64
	MaxPoints      float64
}

func (r *ImageRule) Score(a *contest.Article) (float64, string) {
	if !textsAvailable(a) {
		return 0, ""
	}

	var images int
	for _, rev := range a.Revisions {
		added := len(imagePattern.FindAllString(rev.Text, -1)) -
			len(imagePattern.FindAllString(rev.ParentText, -1))
		if added > 0 {
			images += added
		}
	}
	if images == 0 {
		return 0, ""
	}

	points, wasCapped := capped(float64(images)*r.PointsPerImage, r.MaxPoints)
	if wasCapped {
		return points, fmt.Sprintf("%d images (capped at %.1f p)", images, points)
	}
	return points, fmt.Sprintf("%d images (%.1f p)", images, points)
}

// ByteBonusRule awards a fixed bonus once if the article's byte delta
// falls within [Low, High).
type ByteBonusRule struct {
	Points float64
	Low    int64
	High   int64
}

func (r *ByteBonusRule) Score(a *contest.Article) (float64, string) {
	bytes := a.Bytes()
	if bytes < r.Low || bytes >= r.High {
		return 0, ""
	}
	return r.Points, fmt.Sprintf("byte bonus (%.1f p)", r.Points)
}
