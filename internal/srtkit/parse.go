package srtkit

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Arrow variants seen in the wild: en/em dashes, "=>", a bare " - ",
	// and arrows with missing dashes.
	arrowRE = regexp.MustCompile(`\s*(?:-->|—>|–>|->|=>|\s-\s)\s*`)

	// Timecode with a permissive millisecond separator: comma, period,
	// colon, semicolon or space, with 1-3 millisecond digits, or none.
	timecodeRE = regexp.MustCompile(`(\d{1,2}):(\d{1,2}):(\d{1,2})(?:[,.;: ](\d{1,3}))?`)

	timingLineRE = regexp.MustCompile(`^\s*\d{1,2}:\d{1,2}:\d{1,2}`)
	indexLineRE  = regexp.MustCompile(`^\s*\d+\s*$`)
)

// normalizeArrow rewrites any recognized separator between two timecodes to
// the canonical " --> ".
func normalizeArrow(line string) string {
	loc := timecodeRE.FindStringIndex(line)
	if loc == nil {
		return line
	}
	rest := line[loc[1]:]
	second := timecodeRE.FindStringIndex(rest)
	if second == nil {
		return line
	}
	between := rest[:second[0]]
	if !arrowRE.MatchString(between) && strings.TrimSpace(between) != "" {
		return line
	}
	return line[:loc[1]] + " --> " + rest[second[0]:]
}

// parseTimecode converts a single permissive timecode to milliseconds.
// Millisecond digits are right-padded, so "12:00:01.5" means 500ms.
func parseTimecode(s string) (int64, bool) {
	m := timecodeRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms := 0
	if m[4] != "" {
		padded := m[4] + strings.Repeat("0", 3-len(m[4]))
		ms, _ = strconv.Atoi(padded)
	}
	if min > 59 || sec > 59 {
		return 0, false
	}
	return int64(h)*3600000 + int64(min)*60000 + int64(sec)*1000 + int64(ms), true
}

// parseTimingLine extracts start/end from a (possibly damaged) timing line.
func parseTimingLine(line string) (start, end int64, ok bool) {
	line = normalizeArrow(line)
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, okStart := parseTimecode(parts[0])
	end, okEnd := parseTimecode(parts[1])
	if !okStart || !okEnd {
		return 0, 0, false
	}
	return start, end, true
}

// ParseCues reads SRT text, tolerating damaged arrows, loose millisecond
// separators, missing indices and ragged blank lines. Cues with no parsable
// timing line are dropped.
func ParseCues(text string) []Cue {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\uFEFF")

	var cues []Cue
	var current *Cue

	flush := func() {
		if current != nil && current.End > current.Start {
			trimTrailingBlank(current)
			cues = append(cues, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if timingLineRE.MatchString(line) {
			if start, end, ok := parseTimingLine(line); ok {
				flush()
				current = &Cue{Index: len(cues) + 1, Start: start, End: end}
				continue
			}
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case current == nil:
			// Leading garbage or an index before its timing line.
		case trimmed == "":
			if len(current.Lines) > 0 {
				flush()
			}
		case indexLineRE.MatchString(line) && len(current.Lines) == 0:
			// Index glued to the previous block without a blank line.
		default:
			current.Lines = append(current.Lines, strings.TrimRight(stripControls(line), " \t"))
		}
	}
	flush()
	return cues
}

// stripControls drops C0 and C1 control runes from cue text, keeping tabs.
// Damaged files carry stray control bytes that some players render as boxes.
func stripControls(line string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f) {
			return -1
		}
		return r
	}, line)
}

func trimTrailingBlank(c *Cue) {
	for len(c.Lines) > 0 && strings.TrimSpace(c.Lines[len(c.Lines)-1]) == "" {
		c.Lines = c.Lines[:len(c.Lines)-1]
	}
}
