package srtkit

// Scale multiplies every cue timestamp by ratio, used to correct subtitles
// authored against a different cut or frame rate. The text must already be
// parsable; callers repair first.
func Scale(text string, ratio float64) (string, error) {
	cues := ParseCues(text)
	if len(cues) == 0 {
		return "", ErrNoCues
	}
	for i := range cues {
		cues[i].Start = int64(float64(cues[i].Start)*ratio + 0.5)
		cues[i].End = int64(float64(cues[i].End)*ratio + 0.5)
	}
	return Render(cues), nil
}

// Duration returns the end timestamp of the last cue, the subtitle's
// effective runtime.
func Duration(text string) int64 {
	cues := ParseCues(text)
	if len(cues) == 0 {
		return 0
	}
	var max int64
	for _, c := range cues {
		if c.End > max {
			max = c.End
		}
	}
	return max
}
