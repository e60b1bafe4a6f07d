package contest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRevision_ByteDelta(t *testing.T) {
	tests := []struct {
		name       string
		size       int64
		parentSize int64
		want       int64
	}{
		{"growth", 800, 500, 300},
		{"creation", 500, 0, 500},
		{"removal", 200, 500, -300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Revision{Size: tc.size, ParentSize: tc.parentSize}
			assert.Equal(t, tc.want, r.Bytes())
		})
	}
}

func TestRevision_New(t *testing.T) {
	assert.True(t, (&Revision{ParentID: 0}).New())
	assert.False(t, (&Revision{ParentID: 99}).New())
}

func TestArticle_Bytes_SumsRevisions(t *testing.T) {
	a := &Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&Revision{RevID: 100, Size: 500, ParentSize: 0})
	a.AddRevision(&Revision{RevID: 101, ParentID: 100, Size: 800, ParentSize: 500})
	a.AddRevision(&Revision{RevID: 102, ParentID: 101, Size: 700, ParentSize: 800})

	assert.Equal(t, int64(700), a.Bytes())
}

func TestArticle_New_UsesEarliestRevision(t *testing.T) {
	a := &Article{Site: "no", Title: "Giraffe"}
	a.AddRevision(&Revision{RevID: 101, ParentID: 100, Size: 800})
	a.AddRevision(&Revision{RevID: 100, ParentID: 0, Size: 500})
	a.SortRevisions()

	assert.True(t, a.New(), "earliest revision has no parent")
	assert.Equal(t, int64(100), a.First().RevID)
	assert.Equal(t, int64(101), a.Last().RevID)
}

func TestArticle_Key(t *testing.T) {
	a := &Article{Site: "no", Title: "Giraffe"}
	assert.Equal(t, "no:Giraffe", a.Key())
	assert.Equal(t, "nn:Okapi", Key("nn", "Okapi"))
}

func TestUser_SortContribs(t *testing.T) {
	u := NewUser("Alice")

	b := u.EnsureArticle("no", "B")
	b.AddRevision(&Revision{RevID: 300})
	b.AddRevision(&Revision{RevID: 250})

	a := u.EnsureArticle("no", "A")
	a.AddRevision(&Revision{RevID: 120})

	u.SortContribs()

	// Articles ordered by earliest revision id, revisions ascending.
	assert.Equal(t, "A", u.Articles[0].Title)
	assert.Equal(t, "B", u.Articles[1].Title)
	assert.Equal(t, int64(250), u.Articles[1].Revisions[0].RevID)
	assert.Equal(t, int64(300), u.Articles[1].Revisions[1].RevID)
}

func TestUser_EnsureArticle_Deduplicates(t *testing.T) {
	u := NewUser("Alice")
	a1 := u.EnsureArticle("no", "Giraffe")
	a2 := u.EnsureArticle("no", "Giraffe")
	a3 := u.EnsureArticle("nn", "Giraffe")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, a3, "same title on another site is a different article")
	assert.Len(t, u.Articles, 2)
}

func TestUser_Revisions_Flattens(t *testing.T) {
	u := NewUser("Alice")
	u.EnsureArticle("no", "A").AddRevision(&Revision{RevID: 1, Timestamp: time.Now()})
	u.EnsureArticle("no", "B").AddRevision(&Revision{RevID: 2})
	u.EnsureArticle("no", "B").AddRevision(&Revision{RevID: 3})

	assert.Len(t, u.Revisions(), 3)
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	assert.True(t, d.Empty())

	d.Add("no:Giraffe", "revision %d missing", 42)
	assert.False(t, d.Empty())
	assert.Len(t, d.Items(), 1)
	assert.Equal(t, "no:Giraffe", d.Items()[0].Article)
	assert.Equal(t, "revision 42 missing", d.Items()[0].Message)
}
