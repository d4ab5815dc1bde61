// Package srtkit parses, repairs, rescales and re-serializes SubRip subtitle
// text. It is deliberately tolerant on input and strict on output: anything
// that survives parsing serializes back to well-formed SRT.
package srtkit

import (
	"fmt"
	"strings"
)

// Cue is a single subtitle entry with millisecond timestamps.
type Cue struct {
	Index int
	Start int64
	End   int64
	Lines []string
}

// FormatTimestamp renders milliseconds as an SRT timecode (HH:MM:SS,mmm).
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// Render serializes cues to SRT text with CRLF-free line endings and indices
// renumbered from 1 regardless of the input numbering.
func Render(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		for _, line := range cue.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
