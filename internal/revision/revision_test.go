// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package revision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/research-council/internal/schema"
)

func TestExtract_TwoItemsInOrder(t *testing.T) {
	memos := []Memo{{
		Referee: "Referee A",
		Content: "Verdict: revise\nRequired revisions\n- tighten estimand\n- expand falsification",
	}}

	got := Extract(schema.Default(), memos)
	assert.Equal(t, []string{
		"Referee A: tighten estimand",
		"Referee A: expand falsification",
	}, got)
}

func TestExtract_DedupesKeepingFirst(t *testing.T) {
	memos := []Memo{
		{Referee: "Referee A", Content: "Required revisions:\n- add placebo\n- add placebo\n- fix merge keys"},
		{Referee: "Referee B", Content: "Required revisions:\n1. add placebo"},
		{Referee: "Referee A", Content: "Required revisions:\n- fix merge keys\n- new item"},
	}

	got := Extract(schema.Default(), memos)
	assert.Equal(t, []string{
		"Referee A: add placebo",
		"Referee A: fix merge keys",
		"Referee B: add placebo",
		"Referee A: new item",
	}, got)
}

func TestExtract_SentinelWhenEmpty(t *testing.T) {
	got := Extract(schema.Default(), []Memo{{Referee: "Referee A", Content: "Verdict: accept"}})
	assert.Equal(t, []string{ManualReviewItem}, got)

	assert.Equal(t, []string{ManualReviewItem}, Extract(schema.Default(), nil))
}

func TestBuildLog(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	memos := []Memo{{Referee: "Referee C", Content: "Required revisions\n- one\n- two"}}

	log := BuildLog(schema.Default(), memos, at)
	assert.Equal(t, 2, log.Count())
	assert.Equal(t, "\n\n## Auto-Revision Log\n"+
		"- Applied: 2026-03-04 05:06:07 UTC\n"+
		"- Source: Council memos\n"+
		"- Action: Appended required revisions to dossier sections\n"+
		"- Revisions:\n"+
		"  - Referee C: one\n"+
		"  - Referee C: two\n", log.Text)
}

func TestBuildLog_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	at := time.Date(2026, 3, 4, 7, 0, 0, 0, loc)

	log := BuildLog(schema.Default(), nil, at)
	assert.Contains(t, log.Text, "- Applied: 2026-03-04 05:00:00 UTC")
	assert.Equal(t, 1, log.Count())
}

func TestLogApply(t *testing.T) {
	log := Log{Text: "\n\n## Auto-Revision Log\n"}
	assert.Equal(t, "body\n\n## Auto-Revision Log\n", log.Apply("body \n\n"))
}
