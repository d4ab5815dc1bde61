package subtitles

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mozillazg/go-unidecode"
)

// Store holds the per-provider and per-query caches. Success and failure
// entries carry independent TTLs so a flapping provider recovers quickly
// while good results stay warm.
type Store struct {
	provider *expirable.LRU[string, []Candidate] // per-provider search results
	failure  *expirable.LRU[string, string]      // per-provider failure markers
	result   *expirable.LRU[string, []Ranked]    // fully ranked query results
	empty    *expirable.LRU[string, bool]        // queries known to have no results
	resolved *expirable.LRU[string, *Document]   // post-processed download payloads

	mu           sync.Mutex
	placeholders map[string]struct{} // payload signatures of known junk files
}

// NewStore builds the cache set from TTL settings expressed in seconds.
func NewStore(successTTL, failureTTL, resolvedTTL time.Duration, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = 2048
	}
	return &Store{
		provider:     expirable.NewLRU[string, []Candidate](maxEntries, nil, successTTL),
		failure:      expirable.NewLRU[string, string](maxEntries, nil, failureTTL),
		result:       expirable.NewLRU[string, []Ranked](maxEntries, nil, successTTL),
		empty:        expirable.NewLRU[string, bool](maxEntries, nil, failureTTL),
		resolved:     expirable.NewLRU[string, *Document](maxEntries, nil, resolvedTTL),
		placeholders: make(map[string]struct{}),
	}
}

// NormalizeKey folds a query to a transliterated lowercase form so that
// Cyrillic and Latin spellings of the same title share cache entries.
func NormalizeKey(parts ...string) string {
	folded := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(unidecode.Unidecode(p)))
		p = strings.Join(strings.Fields(p), " ")
		folded = append(folded, p)
	}
	return strings.Join(folded, "|")
}

func providerKey(provider string, req SearchRequest) string {
	return provider + "|" + NormalizeKey(req.Query) + "|" + fmt.Sprintf("%d|%d|%d|%s", req.Year, req.Season, req.Episode, req.IMDBID)
}

func queryKey(req SearchRequest) string {
	return NormalizeKey(req.Query) + "|" + fmt.Sprintf("%d|%d|%d|%s", req.Year, req.Season, req.Episode, req.IMDBID)
}

// ProviderHit returns cached candidates for a provider+query, with a second
// boolean reporting whether the provider is inside a failure window.
func (s *Store) ProviderHit(provider string, req SearchRequest) ([]Candidate, bool, bool) {
	key := providerKey(provider, req)
	if candidates, ok := s.provider.Get(key); ok {
		return candidates, true, false
	}
	if _, failed := s.failure.Get(key); failed {
		return nil, false, true
	}
	return nil, false, false
}

// StoreProvider records a successful provider response. Empty result sets are
// cached too so an unproductive provider is not re-queried every request.
func (s *Store) StoreProvider(provider string, req SearchRequest, candidates []Candidate) {
	s.provider.Add(providerKey(provider, req), candidates)
}

// StoreFailure marks a provider+query as recently failed.
func (s *Store) StoreFailure(provider string, req SearchRequest, reason string) {
	s.failure.Add(providerKey(provider, req), reason)
}

// ResultHit returns the ranked result set for a query when present.
func (s *Store) ResultHit(req SearchRequest) ([]Ranked, bool) {
	if ranked, ok := s.result.Get(queryKey(req)); ok {
		return ranked, true
	}
	if _, ok := s.empty.Get(queryKey(req)); ok {
		return nil, true
	}
	return nil, false
}

// StoreResult caches the ranked result set. Empty sets go to the short-lived
// empty cache instead of the success cache. Sweeps for the same query are
// coalesced through singleflight, so an empty write cannot race a concurrent
// sweep that found results; a later non-empty write shadows the empty entry
// anyway because ResultHit consults the success cache first.
func (s *Store) StoreResult(req SearchRequest, ranked []Ranked) {
	if len(ranked) == 0 {
		s.empty.Add(queryKey(req), true)
		return
	}
	s.result.Add(queryKey(req), ranked)
}

// ResolvedHit returns a previously post-processed document for a token.
func (s *Store) ResolvedHit(token string) (*Document, bool) {
	return s.resolved.Get(token)
}

// StoreResolved caches a post-processed document keyed by its token.
func (s *Store) StoreResolved(token string, doc *Document) {
	s.resolved.Add(token, doc)
}

// Signature fingerprints a raw payload by content hash and size.
func Signature(data []byte) string {
	sum := sha1.Sum(data)
	return fmt.Sprintf("%s:%d", hex.EncodeToString(sum[:]), len(data))
}

// MarkPlaceholder records a payload signature as a known placeholder so later
// downloads short-circuit before extraction.
func (s *Store) MarkPlaceholder(signature string) {
	s.mu.Lock()
	s.placeholders[signature] = struct{}{}
	s.mu.Unlock()
}

// IsPlaceholder reports whether a payload signature was previously flagged.
func (s *Store) IsPlaceholder(signature string) bool {
	s.mu.Lock()
	_, ok := s.placeholders[signature]
	s.mu.Unlock()
	return ok
}
