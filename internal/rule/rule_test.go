package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wikiscore/internal/config"
	"github.com/runnerr0/wikiscore/internal/contest"
)

func createdArticle(size int64) *contest.Article {
	a := &contest.Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&contest.Revision{RevID: 100, ParentID: 0, Size: size})
	return a
}

func editedArticle(parentText, text string) *contest.Article {
	a := &contest.Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&contest.Revision{
		RevID:      101,
		ParentID:   100,
		Size:       int64(len(text)),
		ParentSize: int64(len(parentText)),
		Text:       text,
		ParentText: parentText,
	})
	return a
}

func TestApply_SumsIndependentRules(t *testing.T) {
	// A created page of 500 bytes under a 0.01 p/byte rule capped at 10
	// plus a 2 p creation bonus scores exactly 7.
	rules, err := FromSpecs([]config.RuleSpec{
		{Kind: "byte", Points: 0.01, MaxPoints: 10},
		{Kind: "new", Points: 2},
	})
	require.NoError(t, err)

	u := contest.NewUser("Alice")
	u.Articles = append(u.Articles, createdArticle(500))

	Apply(u, rules)

	a := u.Articles[0]
	assert.InDelta(t, 7.0, a.Points, 1e-9)
	require.Len(t, a.Breakdown, 2)
	assert.Equal(t, "500 bytes (5.0 p)", a.Breakdown[0])
	assert.Equal(t, "new page (2.0 p)", a.Breakdown[1])

	assert.InDelta(t, 7.0, u.Points, 1e-9)
	assert.Equal(t, int64(500), u.Bytes)
}

func TestApply_IsRepeatable(t *testing.T) {
	rules, err := FromSpecs([]config.RuleSpec{
		{Kind: "byte", Points: 0.01},
		{Kind: "new", Points: 2},
	})
	require.NoError(t, err)

	u := contest.NewUser("Alice")
	u.Articles = append(u.Articles, createdArticle(500))

	Apply(u, rules)
	Apply(u, rules)

	// Totals and breakdowns are recomputed, not accumulated.
	assert.InDelta(t, 7.0, u.Points, 1e-9)
	assert.Len(t, u.Articles[0].Breakdown, 2)
}

func TestNewPageRule(t *testing.T) {
	r := &NewPageRule{Points: 2}

	p, txt := r.Score(createdArticle(500))
	assert.InDelta(t, 2.0, p, 1e-9)
	assert.Equal(t, "new page (2.0 p)", txt)

	p, txt = r.Score(editedArticle("before", "after text"))
	assert.Zero(t, p)
	assert.Empty(t, txt)
}

func TestQualifiedRule(t *testing.T) {
	r := &QualifiedRule{Points: 1.5}

	p, txt := r.Score(editedArticle("before", "after text"))
	assert.InDelta(t, 1.5, p, 1e-9)
	assert.Equal(t, "qualified (1.5 p)", txt)

	p, _ = r.Score(createdArticle(500))
	assert.Zero(t, p)
}

func TestByteRule_Cap(t *testing.T) {
	r := &ByteRule{PointsPerByte: 0.01, MaxPoints: 10}

	p, txt := r.Score(createdArticle(2000))
	assert.InDelta(t, 10.0, p, 1e-9)
	assert.Equal(t, "2000 bytes (capped at 10.0 p)", txt)
}

func TestByteRule_ZeroDelta(t *testing.T) {
	r := &ByteRule{PointsPerByte: 0.01}

	a := &contest.Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&contest.Revision{RevID: 101, ParentID: 100, Size: 500, ParentSize: 500})

	p, txt := r.Score(a)
	assert.Zero(t, p)
	assert.Empty(t, txt)
}

func TestWordRule(t *testing.T) {
	r := &WordRule{PointsPerWord: 0.5}

	p, txt := r.Score(editedArticle("one two", "one two three four five"))
	assert.InDelta(t, 1.5, p, 1e-9)
	assert.Equal(t, "3 words (1.5 p)", txt)
}

func TestWordRule_SkipsMissingText(t *testing.T) {
	r := &WordRule{PointsPerWord: 0.5}

	// Recorded size without cached text means the word count would be a
	// silent zero; the rule must not score at all.
	a := &contest.Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&contest.Revision{RevID: 101, ParentID: 100, Size: 800, ParentSize: 300, ParentText: "one two"})

	p, txt := r.Score(a)
	assert.Zero(t, p)
	assert.Empty(t, txt)
}

func TestWordRule_IgnoresRemovals(t *testing.T) {
	r := &WordRule{PointsPerWord: 0.5}

	p, _ := r.Score(editedArticle("one two three four", "one two"))
	assert.Zero(t, p, "removed words never score negative")
}

func TestImageRule(t *testing.T) {
	r := &ImageRule{PointsPerImage: 3}

	p, txt := r.Score(editedArticle(
		"text [[File:Old.jpg]]",
		"text [[File:Old.jpg]] [[Bilde:Ny.jpg|thumb]] [[ Image:Extra.png ]]",
	))
	assert.InDelta(t, 6.0, p, 1e-9)
	assert.Equal(t, "2 images (6.0 p)", txt)
}

func TestImageRule_SkipsMissingText(t *testing.T) {
	r := &ImageRule{PointsPerImage: 3}

	a := &contest.Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&contest.Revision{RevID: 101, ParentID: 100, Size: 800, ParentSize: 300, Text: "[[File:X.jpg]]"})

	p, _ := r.Score(a)
	assert.Zero(t, p)
}

func TestByteBonusRule_Interval(t *testing.T) {
	r := &ByteBonusRule{Points: 5, Low: 500, High: 1000}

	p, txt := r.Score(createdArticle(500))
	assert.InDelta(t, 5.0, p, 1e-9, "lower bound is inclusive")
	assert.Equal(t, "byte bonus (5.0 p)", txt)

	p, _ = r.Score(createdArticle(999))
	assert.InDelta(t, 5.0, p, 1e-9)

	p, _ = r.Score(createdArticle(1000))
	assert.Zero(t, p, "upper bound is exclusive")

	p, _ = r.Score(createdArticle(499))
	assert.Zero(t, p)
}

func TestFromSpec_Validation(t *testing.T) {
	_, err := FromSpec(config.RuleSpec{Kind: "wat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule kind")

	_, err = FromSpec(config.RuleSpec{Kind: "bytebonus", Points: 5, Low: 1000, High: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "low < high")
}
