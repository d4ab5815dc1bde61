package srtkit

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// IsBinary reports whether data cannot be subtitle text: detected media and
// archive types, embedded null bytes, or a low printable ratio all disqualify.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	// UTF-16 text is full of null bytes but still text; the BOM gives it away.
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	// SubRip detects as application/x-subrip, which descends from text/plain
	// in the detection tree; walk the ancestry rather than match text/ alone.
	mtype := mimetype.Detect(data)
	textual := mtype.Is("application/octet-stream")
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			textual = true
			break
		}
	}
	if !textual {
		return true
	}

	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	printable := 0
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' || b >= 0x20 {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) < 0.85
}

// LooksTextualSub reports whether data plausibly contains timed subtitle
// text in any supported flavor.
func LooksTextualSub(data []byte) bool {
	if IsBinary(data) {
		return false
	}
	text := string(data)
	if strings.Contains(text, "-->") {
		return true
	}
	if IsMicroDVD(text) {
		return true
	}
	return len(ParseCues(text)) > 0
}
