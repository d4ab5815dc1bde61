package srtkit

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCues reports that repair could not recover a single timed cue.
var ErrNoCues = errors.New("no parsable cues")

// Repair rebuilds damaged SRT text: arrows and millisecond separators are
// normalized, blocks are re-split, indices renumbered from 1, and cues with
// inverted timing dropped. Returns ErrNoCues when nothing survives.
func Repair(text string) (string, error) {
	cues := ParseCues(text)
	if len(cues) == 0 {
		return "", ErrNoCues
	}
	sort.SliceStable(cues, func(a, b int) bool { return cues[a].Start < cues[b].Start })
	return Render(cues), nil
}

// Sanitize repairs text and, when repair recovers nothing, substitutes a
// single placeholder cue so the player always has something to load. The
// placeholder spans the first ten seconds, or the full runtime when known.
func Sanitize(text string, runtimeMS int64, notice string) string {
	repaired, err := Repair(text)
	if err == nil {
		return repaired
	}
	end := int64(10000)
	if runtimeMS > 0 {
		end = runtimeMS
	}
	if notice == "" {
		notice = "Subtitle could not be repaired"
	}
	return Render([]Cue{{Index: 1, Start: 0, End: end, Lines: []string{notice}}})
}

// Validate checks serialized SRT for the invariants downstream players rely
// on: at least one cue, and cue start times that never move backwards.
func Validate(text string) error {
	cues := ParseCues(text)
	if len(cues) == 0 {
		return ErrNoCues
	}
	for i := 1; i < len(cues); i++ {
		if cues[i].Start < cues[i-1].Start {
			return fmt.Errorf("cue %d starts before cue %d", i+1, i)
		}
	}
	return nil
}
