package subtitles

import (
	"context"
)

// Language fixes the catalogue served by this instance.
const (
	Language     = "Bulgarian"
	LanguageISO2 = "bul"
)

// SearchRequest provides normalized inputs to provider implementations.
type SearchRequest struct {
	Query     string
	Year      int
	Season    int
	Episode   int
	IMDBID    string // e.g. "tt0133093"
	FPS       float64
	RuntimeMS int64 // expected media runtime, 0 when unknown
	Filename  string
}

// Scraper describes a pluggable subtitle source.
type Scraper interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]Candidate, error)
}

// Downloader fetches the raw payload for a candidate previously returned by
// the same provider. Ref and Params round-trip through the download token.
type Downloader interface {
	Download(ctx context.Context, ref string, params map[string]string) (*Payload, error)
}

// Candidate is a provider result prior to scoring and ranking.
type Candidate struct {
	Source    string // provider name
	Ref       string // provider-specific download reference
	Label     string // short provider tag shown in the UI, e.g. "UNACS"
	Summary   string // human-readable release line
	FileName  string
	Format    string // "srt" when known, empty otherwise
	Year      int
	Info      string // free-form release info used for attribute matching
	FPS       float64
	Downloads int
	Rating    float64
	Params    map[string]string // extra fields a provider needs at download time
}

// Payload carries raw downloaded bytes plus transport hints.
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}
