package subtitles

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"subrelay/config"
	"subrelay/utils/release"
)

// Ranked pairs a candidate with its score and the opaque download token.
type Ranked struct {
	Candidate Candidate
	Score     int
	Token     string
}

type rankedEntry struct {
	Ranked
	providerIdx int
	resultIdx   int
}

func (e rankedEntry) dedupeKey() string {
	if e.Candidate.FileName != "" {
		name := strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(e.Candidate.FileName)
		return NormalizeKey(name)
	}
	return e.Candidate.Source + "|" + e.Candidate.Ref
}

// scoreCandidate compares candidate release info against the request's parsed
// attributes. Matches add weight; mismatches and unknowns add nothing, so a
// sparse provider is never ranked below an equally-relevant verbose one.
func scoreCandidate(c Candidate, want release.Attributes, req SearchRequest, w config.WeightSettings) int {
	have := release.Parse(c.Info)
	if have.Year == 0 {
		have.Year = c.Year
	}
	if have.FPS == 0 {
		have.FPS = c.FPS
	}
	if have.Group == "" {
		have.Group = release.Parse(c.FileName).Group
	}

	score := yearScore(have.Year, c.Info, want.Year, w)
	if req.FPS > 0 && have.FPS > 0 {
		diff := math.Abs(have.FPS - req.FPS)
		switch {
		case diff < 0.01:
			score += w.FPSExact
		case diff < 0.1:
			score += w.FPSClose
		case diff < 1.0:
			score += w.FPSLoose
		}
	}
	if want.Resolution != "" && have.Resolution == want.Resolution {
		score += w.Resolution
	}
	if want.Source != "" && have.Source == want.Source {
		score += w.Source
	}
	if want.Codec != "" && release.SameCodecFamily(have.Codec, want.Codec) {
		score += w.Codec
	}
	if want.Group != "" && have.Group == want.Group {
		score += w.Group
	}
	if len(want.Editions) > 0 && sharesEdition(want.Editions, have.Editions) {
		score += w.Edition
	}
	if c.Downloads > 0 {
		bonus := float64(c.Downloads) / 100
		if bonus > w.Downloads {
			bonus = w.Downloads
		}
		score += bonus
	}
	return int(score + 0.5)
}

// yearScore is the base ranking signal, applied whether or not smart match
// is enabled. An off-by-one year still carries a little weight because
// providers frequently list the festival year.
func yearScore(haveYear int, info string, wantYear int, w config.WeightSettings) float64 {
	if wantYear <= 0 {
		return 0
	}
	switch {
	case haveYear == wantYear:
		return w.YearExact
	case haveYear != 0 && abs(haveYear-wantYear) == 1:
		return w.YearNear
	case strings.Contains(info, strconv.Itoa(wantYear)):
		return w.YearInInfo
	}
	return 0
}

// strictReject reports whether strict mode eliminates the candidate for
// missing a required attribute match.
func strictReject(c Candidate, want release.Attributes, req SearchRequest, strict config.StrictSettings) bool {
	if !strict.Mode {
		return false
	}
	have := release.Parse(c.Info)
	if have.Group == "" {
		have.Group = release.Parse(c.FileName).Group
	}
	if have.FPS == 0 {
		have.FPS = c.FPS
	}
	if strict.RequireSource && want.Source != "" && have.Source != want.Source {
		return true
	}
	if strict.RequireResolution && want.Resolution != "" && have.Resolution != want.Resolution {
		return true
	}
	if strict.RequireCodec && want.Codec != "" && !release.SameCodecFamily(have.Codec, want.Codec) {
		return true
	}
	if strict.RequireGroup && want.Group != "" && have.Group != want.Group {
		return true
	}
	if strict.RequireFPS && req.FPS > 0 && (have.FPS == 0 || math.Abs(have.FPS-req.FPS) >= 0.1) {
		return true
	}
	return false
}

// rank scores, deduplicates, caps and orders candidates. providerOrder maps a
// provider name to its registration index, which breaks score ties so output
// stays deterministic across runs.
func rank(byProvider map[string][]Candidate, providerOrder map[string]int, req SearchRequest, scoring config.ScoringSettings, perProviderCap, globalCap int) []Ranked {
	want := release.Parse(req.Filename)
	if want.Year == 0 {
		want.Year = req.Year
	}

	var all []rankedEntry
	for provider, candidates := range byProvider {
		var kept []rankedEntry
		for i, c := range candidates {
			if scoring.SmartMatch && strictReject(c, want, req, scoring.Strict) {
				continue
			}
			var score int
			if scoring.SmartMatch {
				score = scoreCandidate(c, want, req, scoring.Weights)
			} else {
				haveYear := release.Parse(c.Info).Year
				if haveYear == 0 {
					haveYear = c.Year
				}
				score = int(yearScore(haveYear, c.Info, want.Year, scoring.Weights) + 0.5)
			}
			kept = append(kept, rankedEntry{
				Ranked:      Ranked{Candidate: c, Score: score},
				providerIdx: providerOrder[provider],
				resultIdx:   i,
			})
		}
		sort.SliceStable(kept, func(a, b int) bool {
			if kept[a].Score != kept[b].Score {
				return kept[a].Score > kept[b].Score
			}
			return kept[a].resultIdx < kept[b].resultIdx
		})
		if perProviderCap > 0 && len(kept) > perProviderCap {
			kept = kept[:perProviderCap]
		}
		all = append(all, kept...)
	}

	sort.SliceStable(all, func(a, b int) bool {
		if all[a].Score != all[b].Score {
			return all[a].Score > all[b].Score
		}
		if all[a].providerIdx != all[b].providerIdx {
			return all[a].providerIdx < all[b].providerIdx
		}
		return all[a].resultIdx < all[b].resultIdx
	})

	all = dedupe(all)

	if globalCap > 0 && len(all) > globalCap {
		all = ensureProviderPresence(all, globalCap)
	}

	ranked := make([]Ranked, 0, len(all))
	for _, entry := range all {
		ranked = append(ranked, entry.Ranked)
	}
	return ranked
}

// dedupe drops repeated entries for the same file. The list is already sorted
// by score, so the kept entry is always the best-scored duplicate.
func dedupe(all []rankedEntry) []rankedEntry {
	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, entry := range all {
		k := entry.dedupeKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// ensureProviderPresence trims to the global cap while keeping at least one
// entry from every provider that contributed, so a low-scoring provider is
// represented rather than crowded out entirely.
func ensureProviderPresence(all []rankedEntry, limit int) []rankedEntry {
	out := append([]rankedEntry(nil), all[:limit]...)
	present := make(map[string]struct{}, limit)
	for _, entry := range out {
		present[entry.Candidate.Source] = struct{}{}
	}
	for _, entry := range all[limit:] {
		if _, ok := present[entry.Candidate.Source]; ok {
			continue
		}
		// Replace the lowest-scored entry from an over-represented provider.
		for i := len(out) - 1; i >= 0; i-- {
			if countProvider(out, out[i].Candidate.Source) > 1 {
				out[i] = entry
				present[entry.Candidate.Source] = struct{}{}
				break
			}
		}
	}
	return out
}

func countProvider(list []rankedEntry, name string) int {
	n := 0
	for _, entry := range list {
		if entry.Candidate.Source == name {
			n++
		}
	}
	return n
}

func sharesEdition(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
