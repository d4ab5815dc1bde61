package srtkit

import (
	"regexp"
	"strconv"
	"strings"
)

var microdvdRE = regexp.MustCompile(`^\{(\d+)\}\{(\d+)\}(.*)$`)

// IsMicroDVD reports whether the text uses frame-based {start}{end} lines.
func IsMicroDVD(text string) bool {
	matched := 0
	checked := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		checked++
		if microdvdRE.MatchString(line) {
			matched++
		}
		if checked >= 10 {
			break
		}
	}
	return checked > 0 && matched*2 > checked
}

// FromMicroDVD converts frame-based lines to cues at the given frame rate.
// A zero fps falls back to 25, the PAL default for this catalogue. MicroDVD
// pipe separators become line breaks.
func FromMicroDVD(text string, fps float64) []Cue {
	if fps <= 0 {
		fps = 25
	}
	msPerFrame := 1000.0 / fps

	var cues []Cue
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		m := microdvdRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		startFrame, _ := strconv.Atoi(m[1])
		endFrame, _ := strconv.Atoi(m[2])
		body := stripMicroDVDTags(m[3])
		if body == "" || endFrame <= startFrame {
			continue
		}
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: int64(float64(startFrame)*msPerFrame + 0.5),
			End:   int64(float64(endFrame)*msPerFrame + 0.5),
			Lines: strings.Split(body, "|"),
		})
	}
	return cues
}

var microdvdTagRE = regexp.MustCompile(`\{[^}]*\}`)

func stripMicroDVDTags(s string) string {
	return strings.TrimSpace(microdvdTagRE.ReplaceAllString(s, ""))
}
