// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate classifies the two automatic gates. Gate 1 checks that a
// pitch carries its required header block; Gate 4 aggregates council scores
// and verdicts against the schema thresholds. Gates 2 and 3 are adjudicated
// by a person and have no classifier here.
package gate

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-council/internal/parse"
	"github.com/pdiddy/research-council/internal/schema"
	"github.com/pdiddy/research-council/pkg/types"
)

// Result is one gate classification.
type Result struct {
	Status types.GateStatus
	Notes  string
}

// Structure is the Gate 1 result with the missing keys broken out.
type Structure struct {
	Result
	Missing []string
}

// CheckStructure validates the required pitch headers in schema order.
func CheckStructure(s *schema.Schema, pitch string) Structure {
	var missing []string
	for _, key := range s.Pitch.RequiredHeaders() {
		if _, ok := parse.HeaderValue(pitch, key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Structure{
			Result: Result{
				Status: types.GateFailed,
				Notes:  "Missing required fields: " + strings.Join(missing, ", "),
			},
			Missing: missing,
		}
	}
	return Structure{Result: Result{Status: types.GatePassed}}
}

// Council is the Gate 4 result with the parsed evidence broken out.
type Council struct {
	Result
	Averages map[string]float64
	Counts   map[string]int
	Verdicts []string
}

// ScoreCouncil aggregates memo scores and verdicts. The checks run in a
// fixed order: missing categories, thresholds, a reject verdict, a revise
// verdict. The note always carries the averages and the verdict list.
func ScoreCouncil(s *schema.Schema, memos []string) Council {
	labels := make([]parse.Label, len(s.Scores.Labels))
	for i, l := range s.Scores.Labels {
		labels[i] = parse.Label{Match: l.Match, Category: l.Category}
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var verdicts []string
	for _, memo := range memos {
		for category, values := range parse.Scores(memo, labels) {
			for _, v := range values {
				sums[category] += v
				counts[category]++
			}
		}
		verdicts = append(verdicts, parse.Verdicts(memo, s.Verdict.Prefix)...)
	}

	averages := make(map[string]float64, len(counts))
	for category, n := range counts {
		averages[category] = sums[category] / float64(n)
	}

	var missing, failing []string
	averageText := make([]string, 0, len(s.Scores.Thresholds))
	for _, th := range s.Scores.Thresholds {
		if counts[th.Category] == 0 {
			missing = append(missing, th.Category)
			averageText = append(averageText, th.Category+"=n/a")
			continue
		}
		avg := averages[th.Category]
		averageText = append(averageText, fmt.Sprintf("%s=%.1f", th.Category, avg))
		if avg < th.Min {
			failing = append(failing, th.Category)
		}
	}

	verdictText := "no verdicts found"
	if len(verdicts) > 0 {
		verdictText = strings.Join(verdicts, ", ")
	}
	note := func(reason string) string {
		return strings.Join([]string{
			"Auto Gate 4 recompute",
			"Averages: " + strings.Join(averageText, ", "),
			"Verdicts: " + verdictText,
			reason,
		}, "; ")
	}

	out := Council{Averages: averages, Counts: counts, Verdicts: verdicts}
	switch {
	case len(missing) > 0:
		out.Result = Result{types.GateNeedsRevision, note("Missing scores for: " + strings.Join(missing, ", "))}
	case len(failing) > 0:
		out.Result = Result{types.GateFailed, note("Below thresholds: " + strings.Join(failing, ", "))}
	case anyContains(verdicts, s.Verdict.Reject):
		out.Result = Result{types.GateFailed, note("Verdict includes " + s.Verdict.Reject)}
	case anyContains(verdicts, s.Verdict.Revise):
		out.Result = Result{types.GateNeedsRevision, note("Verdict includes " + s.Verdict.Revise)}
	default:
		out.Result = Result{types.GatePassed, note("All thresholds met")}
	}
	return out
}

func anyContains(values []string, substr string) bool {
	if substr == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}
