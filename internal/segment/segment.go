// Package segment converts extracted document text into an ordered list of
// distinct, length-bounded question strings.
package segment

import (
	"regexp"
	"strings"
)

// Length bounds for an acceptable question. Empirically chosen; tunable.
const (
	MinLen = 15
	MaxLen = 500
)

// markerRe matches the start of a new question: "3.", "12)", "Q.4", "Q7",
// or a lettered sub-part "(a)".
var markerRe = regexp.MustCompile(`^(?:\d{1,2}\s*[.)]|[Qq]\.?\s*\d+|\([a-hA-H]\))\s*`)

// boilerplateRe rejects page furniture that happens to carry a question mark.
var boilerplateRe = regexp.MustCompile(`(?i)^(page\b|continued\b|see\b|refer)`)

// Segment runs a line-oriented buffering state machine over text.
//
// Lines merge into a pending buffer. A buffer ending in '?' closes as a
// candidate. A new-question marker force-closes a prior buffer that already
// holds a '?'. Buffers that grow past MaxLen without closing are split at
// each embedded '?'. A non-empty buffer containing '?' is flushed at EOF.
// Candidates then pass the length/content filter and exact-duplicate removal.
func Segment(text string) []string {
	var candidates []string
	var buf string

	flush := func(s string) {
		candidates = append(candidates, splitCompound(s)...)
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if markerRe.MatchString(line) && strings.Contains(buf, "?") {
			flush(buf)
			buf = line
		} else if buf == "" {
			buf = line
		} else {
			buf = buf + " " + line
		}

		if strings.HasSuffix(buf, "?") {
			flush(buf)
			buf = ""
			continue
		}

		// Runaway merge across unrelated text: salvage embedded questions,
		// keep only the trailing remainder.
		if len(buf) > MaxLen {
			parts, rest := splitAtQuestionMarks(buf)
			candidates = append(candidates, parts...)
			buf = rest
		}
	}

	if strings.Contains(buf, "?") {
		flush(buf)
	}

	return dedupe(filter(candidates))
}

// splitCompound splits a closed candidate like "1. What is X? 2. What is Y?"
// at each '?' that is immediately followed by a new-question marker.
func splitCompound(s string) []string {
	var parts []string
	rest := strings.TrimSpace(s)

	for {
		cut := -1
		search := 0
		for {
			i := strings.Index(rest[search:], "?")
			if i == -1 {
				break
			}
			i += search
			tail := strings.TrimSpace(rest[i+1:])
			if tail != "" && markerRe.MatchString(tail) {
				cut = i
				break
			}
			search = i + 1
		}
		if cut == -1 {
			break
		}
		parts = append(parts, strings.TrimSpace(rest[:cut+1]))
		rest = strings.TrimSpace(rest[cut+1:])
	}

	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// splitAtQuestionMarks cuts an overgrown buffer at every '?', returning the
// complete pieces and the unterminated remainder.
func splitAtQuestionMarks(s string) ([]string, string) {
	var parts []string
	for {
		i := strings.Index(s, "?")
		if i == -1 {
			break
		}
		parts = append(parts, strings.TrimSpace(s[:i+1]))
		s = strings.TrimSpace(s[i+1:])
	}
	return parts, s
}

// filter applies the length/content rules to every candidate.
func filter(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if len(c) < MinLen || len(c) > MaxLen {
			continue
		}
		if !strings.Contains(c, "?") {
			continue
		}
		if boilerplateRe.MatchString(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dedupe drops exact repeats while preserving first-seen order.
func dedupe(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
