// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse extracts structured values from generated Markdown: pitch
// headers, council memo boundaries, scores, verdicts, required revisions and
// literature idea prompts. Every extractor reports whether it found anything
// so callers can log a miss instead of silently storing nothing.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	titleRe    = regexp.MustCompile(`(?im)^Working title\s*:?\s*(.+)$`)
	bigClaimRe = regexp.MustCompile(`(?im)^One-sentence big claim\s*:?\s*(.+)$`)
	outOfTenRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*10`)
	bareNumRe  = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
	bulletRe   = regexp.MustCompile(`^[-*]\s+(.*)`)
	numberedRe = regexp.MustCompile(`^\d+[).]\s+(.*)`)
)

// HeaderValue returns the value of the first "KEY: value" line. The key is
// case-sensitive and must start the line. A blank value counts as missing;
// the value never spills over from the next line.
func HeaderValue(content, key string) (string, bool) {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `[ \t]*:[ \t]*(.+)$`)
	return firstGroup(re, content)
}

// Title returns the "Working title" line of a pitch.
func Title(content string) (string, bool) {
	return firstGroup(titleRe, content)
}

// BigClaim returns the "One-sentence big claim" line of a pitch.
func BigClaim(content string) (string, bool) {
	return firstGroup(bigClaimRe, content)
}

func firstGroup(re *regexp.Regexp, content string) (string, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// SplitMemos splits council output on lines made only of minHyphens or more
// hyphens. Parts are trimmed and empty parts dropped. When nothing remains
// the whole trimmed text is returned as a single memo.
func SplitMemos(content string, minHyphens int) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			parts = append(parts, p)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(content, "\n") {
		if isSeparator(line, minHyphens) {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	if len(parts) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	return parts
}

func isSeparator(line string, minHyphens int) bool {
	t := strings.TrimSpace(line)
	return len(t) >= minHyphens && strings.Trim(t, "-") == ""
}

// RefereeLabel names the i-th memo (1-based): letters for the first
// letters referees, then the index.
func RefereeLabel(prefix string, letters, i int) string {
	if i >= 1 && i <= letters {
		return prefix + " " + string(rune('A'+i-1))
	}
	return prefix + " " + strconv.Itoa(i)
}

// Score extracts a number from a line, preferring "N/10" and falling back
// to the first bare number.
func Score(line string) (float64, bool) {
	if m := outOfTenRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
	if m := bareNumRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
	return 0, false
}

// Label maps a case-insensitive substring to a score category.
type Label struct {
	Match    string
	Category string
}

// Scores collects per-category scores from one memo. Labels are tried in
// order and the first that matches a line claims it, even if the line
// carries no number.
func Scores(content string, labels []Label) map[string][]float64 {
	scores := make(map[string][]float64)
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		for _, l := range labels {
			if !strings.Contains(lower, strings.ToLower(l.Match)) {
				continue
			}
			if v, ok := Score(line); ok {
				scores[l.Category] = append(scores[l.Category], v)
			}
			break
		}
	}
	return scores
}

// Verdicts returns the lower-cased text after the first colon of every line
// that begins with prefix. Leading Markdown markers are ignored. A verdict
// line without a colon yields an empty verdict.
func Verdicts(content, prefix string) []string {
	var out []string
	prefix = strings.ToLower(prefix)
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimLeft(strings.TrimSpace(line), "-*#> \t")
		if !strings.HasPrefix(strings.ToLower(t), prefix) {
			continue
		}
		_, after, _ := strings.Cut(t, ":")
		out = append(out, strings.ToLower(strings.Trim(after, " \t\r*_")))
	}
	return out
}

// RequiredRevisions returns the items of the first section whose heading
// line contains start. Collection stops at a line that opens one of the
// section headers. Bullet and numbered markers are stripped and unmarked
// lines continue the previous item.
func RequiredRevisions(content, start string, headers []string) []string {
	lines := strings.Split(content, "\n")
	begin := -1
	startLower := strings.ToLower(start)
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), startLower) {
			begin = i + 1
			break
		}
	}
	if begin < 0 {
		return nil
	}
	stop := sectionHeaderRe(headers)

	var items []string
	for _, line := range lines[begin:] {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if stop != nil && stop.MatchString(headingText(t)) {
			break
		}
		if item, ok := listItem(t); ok {
			items = append(items, item)
			continue
		}
		if len(items) > 0 {
			items[len(items)-1] += " " + t
		}
	}
	return items
}

func sectionHeaderRe(headers []string) *regexp.Regexp {
	if len(headers) == 0 {
		return nil
	}
	quoted := make([]string, len(headers))
	for i, h := range headers {
		quoted[i] = regexp.QuoteMeta(h)
	}
	return regexp.MustCompile(`(?i)^(` + strings.Join(quoted, "|") + `)\b`)
}

// headingText strips Markdown heading and bold markers so "## Scores" and
// "**Verdict**" close a section like their plain forms do.
func headingText(t string) string {
	t = strings.TrimSpace(strings.TrimLeft(t, "#"))
	return strings.TrimPrefix(t, "**")
}

func listItem(t string) (string, bool) {
	if m := bulletRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := numberedRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// AssessmentSeeds returns the idea prompts listed after the first line that
// mentions "idea prompt". The list ends at a blank line once items have
// started, or at a "##" heading.
func AssessmentSeeds(assessment string) []string {
	lines := strings.Split(assessment, "\n")
	begin := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "idea prompt") {
			begin = i + 1
			break
		}
	}
	if begin < 0 {
		return nil
	}

	var seeds []string
	for _, line := range lines[begin:] {
		t := strings.TrimSpace(line)
		if t == "" {
			if len(seeds) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(t, "##") {
			break
		}
		if item, ok := listItem(t); ok {
			seeds = append(seeds, item)
			continue
		}
		if len(seeds) > 0 {
			seeds[len(seeds)-1] += " " + t
		}
	}
	return seeds
}
