package subtitles

import (
	"fmt"
	"testing"

	"subrelay/config"
)

func defaultScoring() config.ScoringSettings {
	return config.ScoringSettings{
		SmartMatch: true,
		Weights: config.WeightSettings{
			YearExact: 80, YearNear: 12, YearInInfo: 25,
			FPSExact: 40, FPSClose: 22, FPSLoose: 10,
			Resolution: 10, Source: 6, Codec: 5, Group: 16, Edition: 8,
			Downloads: 5,
		},
	}
}

func makeCandidates(provider string, n int) []Candidate {
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Candidate{
			Source:   provider,
			Ref:      fmt.Sprintf("%s-ref-%d", provider, i),
			FileName: fmt.Sprintf("Movie.2020.1080p.%s.%d.srt", provider, i),
			Year:     2020,
		})
	}
	return out
}

func TestRankCapsPerProviderAndGlobally(t *testing.T) {
	byProvider := map[string][]Candidate{
		"alpha": makeCandidates("alpha", 5),
		"beta":  makeCandidates("beta", 5),
		"gamma": makeCandidates("gamma", 5),
	}
	order := map[string]int{"alpha": 0, "beta": 1, "gamma": 2}

	req := SearchRequest{Query: "Movie", Year: 2020, Filename: "Movie.2020.1080p.x264-GRP.mkv"}
	ranked := rank(byProvider, order, req, defaultScoring(), 3, 8)

	if len(ranked) != 8 {
		t.Fatalf("got %d results, want exactly 8", len(ranked))
	}
	perProvider := map[string]int{}
	for _, r := range ranked {
		perProvider[r.Candidate.Source]++
	}
	for provider, n := range perProvider {
		if n > 3 {
			t.Errorf("provider %s has %d results, cap is 3", provider, n)
		}
	}
	if len(perProvider) != 3 {
		t.Errorf("only %d providers represented, want all 3", len(perProvider))
	}
}

func TestRankScoresExactYearAboveNear(t *testing.T) {
	byProvider := map[string][]Candidate{
		"alpha": {
			{Source: "alpha", Ref: "near", FileName: "A.srt", Year: 2019, Info: "Movie 2019 1080p"},
			{Source: "alpha", Ref: "exact", FileName: "B.srt", Year: 2020, Info: "Movie 2020 1080p"},
		},
	}
	req := SearchRequest{Query: "Movie", Year: 2020}
	ranked := rank(byProvider, map[string]int{"alpha": 0}, req, defaultScoring(), 0, 0)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Candidate.Ref != "exact" {
		t.Errorf("exact-year candidate ranked %q first, want exact", ranked[0].Candidate.Ref)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("exact score %d not above near score %d", ranked[0].Score, ranked[1].Score)
	}
}

func TestRankMismatchNeverNegative(t *testing.T) {
	byProvider := map[string][]Candidate{
		"alpha": {
			{Source: "alpha", Ref: "wrong", FileName: "X.srt", Year: 1999, Info: "Other 1999 480p dvdrip xvid"},
		},
	}
	req := SearchRequest{Query: "Movie", Year: 2020, Filename: "Movie.2020.2160p.Remux.HEVC-GRP.mkv", FPS: 23.976}
	ranked := rank(byProvider, map[string]int{"alpha": 0}, req, defaultScoring(), 0, 0)
	if len(ranked) != 1 {
		t.Fatalf("mismatched candidate was dropped outside strict mode")
	}
	if ranked[0].Score < 0 {
		t.Errorf("score %d is negative, mismatches must contribute zero", ranked[0].Score)
	}
}

func TestRankStrictModeEliminates(t *testing.T) {
	scoring := defaultScoring()
	scoring.Strict = config.StrictSettings{Mode: true, RequireResolution: true}

	byProvider := map[string][]Candidate{
		"alpha": {
			{Source: "alpha", Ref: "good", FileName: "A.srt", Info: "Movie 2020 1080p BluRay"},
			{Source: "alpha", Ref: "bad", FileName: "B.srt", Info: "Movie 2020 720p HDTV"},
		},
	}
	req := SearchRequest{Query: "Movie", Year: 2020, Filename: "Movie.2020.1080p.x264-GRP.mkv"}
	ranked := rank(byProvider, map[string]int{"alpha": 0}, req, scoring, 0, 0)
	if len(ranked) != 1 || ranked[0].Candidate.Ref != "good" {
		t.Fatalf("strict mode kept %v, want only the 1080p candidate", ranked)
	}
}

func TestRankTieBreakFollowsRegistrationOrder(t *testing.T) {
	byProvider := map[string][]Candidate{
		"second": {{Source: "second", Ref: "s0", FileName: "S.srt", Year: 2020, Info: "Movie 2020"}},
		"first":  {{Source: "first", Ref: "f0", FileName: "F.srt", Year: 2020, Info: "Movie 2020"}},
	}
	order := map[string]int{"first": 0, "second": 1}
	req := SearchRequest{Query: "Movie", Year: 2020}
	ranked := rank(byProvider, order, req, defaultScoring(), 0, 0)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Candidate.Source != "first" {
		t.Errorf("tie broken to %q, want registration-order provider first", ranked[0].Candidate.Source)
	}
}

func TestRankYearScoredWithoutSmartMatch(t *testing.T) {
	byProvider := map[string][]Candidate{
		"alpha": {{Source: "alpha", Ref: "a0", FileName: "Wrong.Year.srt", Year: 1995}},
		"beta":  {{Source: "beta", Ref: "b0", FileName: "Right.Year.srt", Year: 2020}},
	}
	order := map[string]int{"alpha": 0, "beta": 1}
	scoring := defaultScoring()
	scoring.SmartMatch = false

	ranked := rank(byProvider, order, SearchRequest{Query: "Movie", Year: 2020}, scoring, 0, 0)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Candidate.Source != "beta" {
		t.Errorf("top result from %q, want beta: exact year must rank first even without smart match", ranked[0].Candidate.Source)
	}
}

func TestRankKeepsLowScoringProviderRepresented(t *testing.T) {
	// "loud" fills the global cap with exact-year matches; "quiet" has one
	// poor candidate that must still appear in the output.
	byProvider := map[string][]Candidate{
		"loud":  makeCandidates("loud", 4),
		"quiet": {{Source: "quiet", Ref: "q0", FileName: "Other.srt", Year: 1990}},
	}
	order := map[string]int{"loud": 0, "quiet": 1}
	req := SearchRequest{Query: "Movie", Year: 2020}
	ranked := rank(byProvider, order, req, defaultScoring(), 0, 4)

	if len(ranked) != 4 {
		t.Fatalf("got %d results, want global cap of 4", len(ranked))
	}
	found := false
	for _, r := range ranked {
		if r.Candidate.Source == "quiet" {
			found = true
		}
	}
	if !found {
		t.Error("low-scoring provider crowded out of the capped result set")
	}
}

func TestRankDeduplicatesSameFileAcrossProviders(t *testing.T) {
	byProvider := map[string][]Candidate{
		"alpha": {{Source: "alpha", Ref: "a", FileName: "Movie.2020.1080p.srt", Year: 2020, Info: "Movie 2020 1080p"}},
		"beta":  {{Source: "beta", Ref: "b", FileName: "movie 2020 1080p.srt", Year: 2019}},
	}
	order := map[string]int{"alpha": 0, "beta": 1}
	req := SearchRequest{Query: "Movie", Year: 2020, Filename: "Movie.2020.1080p.mkv"}
	ranked := rank(byProvider, order, req, defaultScoring(), 0, 0)
	if len(ranked) != 1 {
		t.Fatalf("got %d results, want duplicates collapsed to 1", len(ranked))
	}
	if ranked[0].Candidate.Source != "alpha" {
		t.Errorf("kept %q, want the higher-scored alpha copy", ranked[0].Candidate.Source)
	}
}
