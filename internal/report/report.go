// Package report renders per-user contest results as wikitext, including
// the run footer that distinguishes clean runs from runs with diagnostics.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/wikiscore/internal/contest"
)

// FormatUser renders one user's section: a heading with the point total,
// one line per scoring article with its breakdown and category path, and
// a placeholder when nothing qualified.
func FormatUser(u *contest.User) string {
	var entries []string
	for _, a := range u.Articles {
		if a.Points == 0 {
			continue
		}
		line := fmt.Sprintf("# [[%s|%s]] (%.1f p)", a.Key(), a.Title, a.Points)
		line += fmt.Sprintf("<div style=\"color:#888; font-size:smaller;\">%s</div>",
			strings.Join(a.Breakdown, " + "))
		if len(a.CategoryPath) > 0 {
			line += fmt.Sprintf("<div style=\"color:#888; font-size:smaller;\">%s</div>",
				strings.Join(a.CategoryPath, " &gt; "))
		}
		entries = append(entries, line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== [[User:%s|%s]] (%.0f p) ===\n", u.Name, u.Name, u.Points)
	if len(entries) == 0 {
		b.WriteString("''No qualifying contributions registered yet''")
	} else {
		fmt.Fprintf(&b, "%d articles, {{formatnum:%.2f}} kB\n", len(entries), float64(u.Bytes)/1000.0)
	}
	if len(entries) > 10 {
		b.WriteString("{{Columns}}\n")
	}
	b.WriteString(strings.Join(entries, "\n"))
	b.WriteString("\n\n")

	return b.String()
}

// FormatRun renders the whole results section for a run. The footer marks
// the run ok when no diagnostics accumulated; otherwise it lists every
// diagnostic so the report distinguishes "no qualifying contributions"
// from "processing error occurred".
func FormatRun(users []*contest.User, start, end time.Time, diags *contest.Diagnostics, now time.Time) string {
	var b strings.Builder
	b.WriteString("== Results ==\n\n")
	fmt.Fprintf(&b, "The contest is open from %s to %s.\n\n",
		start.Format("2 January 2006, 15:04"), end.Format("2 January 2006, 15:04"))

	for _, u := range users {
		b.WriteString(FormatUser(u))
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	if diags == nil || diags.Empty() {
		fmt.Fprintf(&b, "\n\n{{Contest robot info | ok | %s }}", timestamp)
		return b.String()
	}

	var notes []string
	for _, d := range diags.Items() {
		notes = append(notes, fmt.Sprintf("\n* '''%s''': %s", d.Article, d.Message))
	}
	fmt.Fprintf(&b, "\n\n{{Contest robot info | note | %s | %s }}", timestamp, strings.Join(notes, ""))
	return b.String()
}
