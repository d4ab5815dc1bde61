// Package release parses release metadata (year, resolution, source, codec,
// group, fps, edition flags) out of file names and free-form info strings.
package release

import (
	"regexp"
	"strconv"
	"strings"
)

// Attributes holds the release tokens recognized in a name.
type Attributes struct {
	Year       int
	Resolution string // "2160p", "1080p", "720p", "480p"
	Source     string // "bluray", "remux", "webdl", "webrip", "hdtv", "dvdrip"
	Codec      string // "x264", "x265", "h264", "h265", "hevc", "av1"
	Group      string
	FPS        float64
	Editions   []string // "directorscut", "extended", "unrated", "remastered"
	Flags      []string // "hdr", "dolbyvision", "10bit", "atmos", "truehd", "dts"
}

var (
	yearRE       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	resolutionRE = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p)\b`)
	sourceRE     = regexp.MustCompile(`(?i)\b(blu[- ]?ray|remux|web[- ]?dl|webrip|hdtv|dvd\s*rip|bd\s*rip|br\s*rip)\b`)
	codecRE      = regexp.MustCompile(`(?i)\b(x264|x265|h\.?264|h\.?265|hevc|av1)\b`)
	editionRE    = regexp.MustCompile(`(?i)\b(director'?s\s*cut|extended|unrated|remaster(?:ed)?)\b`)
	flagRE       = regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|dolby\s*vision|dovi|10bit|atmos|truehd|dts)\b`)
	fpsRE        = regexp.MustCompile(`(?i)\b(23\.976|24|25|29\.97|30|50|59\.94|60)\s*fps\b`)

	// Group candidates: a suffix before the optional extension, or a token
	// directly following the codec, or an explicit "by GROUP" credit.
	groupSuffixRE = regexp.MustCompile(`[-._]([A-Za-z][A-Za-z0-9]{1,11})(?:\.[A-Za-z0-9]{2,4})?$`)
	groupCodecRE  = regexp.MustCompile(`(?i)(?:x26[45]|h\.?26[45]|hevc)[-._]?([A-Za-z][A-Za-z0-9]{1,11})`)
	groupByRE     = regexp.MustCompile(`(?i)\bby\s+([A-Za-z][A-Za-z0-9]{1,11})\b`)
)

var groupNoise = map[string]struct{}{
	"2160p": {}, "1080p": {}, "720p": {}, "480p": {},
	"bluray": {}, "remux": {}, "webdl": {}, "webrip": {}, "hdtv": {}, "dvdrip": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "av1": {},
	"hdr": {}, "hdr10": {}, "dovi": {}, "atmos": {}, "truehd": {}, "dts": {},
	"srt": {}, "sub": {}, "mkv": {}, "mp4": {}, "avi": {}, "zip": {}, "rar": {},
}

// Parse extracts release attributes from a file name or info line.
func Parse(name string) Attributes {
	var attrs Attributes
	if strings.TrimSpace(name) == "" {
		return attrs
	}

	if m := yearRE.FindString(name); m != "" {
		attrs.Year, _ = strconv.Atoi(m)
	}
	if m := resolutionRE.FindString(name); m != "" {
		attrs.Resolution = strings.ToLower(m)
	}
	// Remux releases also name their source disc ("BluRay.Remux"), so scan
	// every source token and let remux win over the disc it came from.
	for _, m := range sourceRE.FindAllString(name, -1) {
		s := normalizeSource(m)
		if attrs.Source == "" || s == "remux" {
			attrs.Source = s
		}
	}
	if m := codecRE.FindString(name); m != "" {
		attrs.Codec = strings.ToLower(strings.ReplaceAll(m, ".", ""))
	}
	for _, m := range editionRE.FindAllString(name, -1) {
		attrs.Editions = appendUnique(attrs.Editions, normalizeEdition(m))
	}
	for _, m := range flagRE.FindAllString(name, -1) {
		attrs.Flags = appendUnique(attrs.Flags, normalizeFlag(m))
	}
	if m := fpsRE.FindStringSubmatch(name); len(m) > 1 {
		attrs.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	attrs.Group = extractGroup(name)
	return attrs
}

// SameCodecFamily reports whether two codec tokens refer to the same encoder
// family (x265/hevc and x264/h264 are interchangeable in release names).
func SameCodecFamily(a, b string) bool {
	a = strings.ToLower(strings.ReplaceAll(a, ".", ""))
	b = strings.ToLower(strings.ReplaceAll(b, ".", ""))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	family := func(c string) string {
		switch c {
		case "x265", "h265", "hevc":
			return "hevc"
		case "x264", "h264":
			return "h264"
		}
		return c
	}
	return family(a) == family(b)
}

func extractGroup(name string) string {
	for _, re := range []*regexp.Regexp{groupSuffixRE, groupCodecRE, groupByRE} {
		for _, m := range re.FindAllStringSubmatch(name, -1) {
			candidate := strings.ToLower(m[1])
			if _, noisy := groupNoise[candidate]; noisy {
				continue
			}
			if _, err := strconv.Atoi(candidate); err == nil {
				continue
			}
			return candidate
		}
	}
	return ""
}

func normalizeSource(token string) string {
	s := strings.ToLower(token)
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	switch {
	case strings.Contains(s, "remux"):
		return "remux"
	case strings.Contains(s, "bluray"):
		return "bluray"
	case strings.Contains(s, "webdl"):
		return "webdl"
	case strings.Contains(s, "webrip"):
		return "webrip"
	case strings.Contains(s, "hdtv"):
		return "hdtv"
	case strings.Contains(s, "dvdrip"), strings.Contains(s, "bdrip"), strings.Contains(s, "brrip"):
		return "dvdrip"
	}
	return s
}

func normalizeEdition(token string) string {
	s := strings.ToLower(token)
	s = strings.NewReplacer("'", "", " ", "").Replace(s)
	if s == "remaster" {
		s = "remastered"
	}
	return s
}

func normalizeFlag(token string) string {
	s := strings.ToLower(strings.ReplaceAll(token, " ", ""))
	if s == "dovi" || s == "dolbyvision" {
		return "dolbyvision"
	}
	return s
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
