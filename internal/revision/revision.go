// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package revision turns the required-revisions sections of council memos
// into a deduplicated action list and the Auto-Revision Log block appended
// to dossier parts.
package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-council/internal/parse"
	"github.com/pdiddy/research-council/internal/schema"
)

// ManualReviewItem stands in for an empty revision list.
const ManualReviewItem = "No explicit required revisions parsed; manual review needed."

// TimestampLayout formats revision and gate-note timestamps (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// Memo is the slice of a council memo the extractor reads.
type Memo struct {
	Referee string
	Content string
}

// Extract returns "{referee}: {item}" for every required revision across
// memos, in memo order, with exact duplicates dropped. It never returns an
// empty list: no items yields the single ManualReviewItem.
func Extract(s *schema.Schema, memos []Memo) []string {
	seen := make(map[string]bool)
	var items []string
	for _, m := range memos {
		for _, rev := range parse.RequiredRevisions(m.Content, s.Revisions.Start, s.Revisions.SectionHeaders) {
			item := m.Referee + ": " + rev
			if seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return []string{ManualReviewItem}
	}
	return items
}

// Log is a rendered Auto-Revision Log block.
type Log struct {
	Text  string
	Items []string
}

// Count returns the number of unique revision items in the log.
func (l Log) Count() int {
	return len(l.Items)
}

// BuildLog extracts the revision items and renders the block that is
// appended verbatim to every dossier part. The block starts with a blank
// line so it can be concatenated to right-trimmed content.
func BuildLog(s *schema.Schema, memos []Memo, at time.Time) Log {
	items := Extract(s, memos)

	var b strings.Builder
	b.WriteString("\n\n## Auto-Revision Log\n")
	fmt.Fprintf(&b, "- Applied: %s UTC\n", at.UTC().Format(TimestampLayout))
	b.WriteString("- Source: Council memos\n")
	b.WriteString("- Action: Appended required revisions to dossier sections\n")
	b.WriteString("- Revisions:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "  - %s\n", item)
	}
	return Log{Text: b.String(), Items: items}
}

// Apply appends the log to content, trimming trailing whitespace first.
func (l Log) Apply(content string) string {
	return strings.TrimRight(content, " \t\r\n") + l.Text
}
