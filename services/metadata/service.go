// Package metadata resolves Stremio-style media ids to titles, years and
// runtimes via Cinemeta-compatible endpoints.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNotFound reports that no catalogue knows the id.
var ErrNotFound = errors.New("metadata not found")

// Title is the resolved media description a subtitle search needs.
type Title struct {
	IMDBID    string
	Title     string
	Year      int
	Season    int
	Episode   int
	RuntimeMS int64
}

// Service queries a list of Cinemeta-compatible base URLs in order, caching
// hits. Later URLs are fallbacks for when the primary is down.
type Service struct {
	baseURLs   []string
	httpClient *http.Client
	cache      *expirable.LRU[string, Title]
}

// NewService builds a resolver. An empty baseURLs list disables lookups and
// every Resolve returns ErrNotFound.
func NewService(client *http.Client, baseURLs []string, ttl time.Duration) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{
		baseURLs:   baseURLs,
		httpClient: client,
		cache:      expirable.NewLRU[string, Title](1024, nil, ttl),
	}
}

type metaResponse struct {
	Meta struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Year    string `json:"year"`
		Runtime string `json:"runtime"`
		Videos  []struct {
			ID      string `json:"id"`
			Season  int    `json:"season"`
			Episode int    `json:"episode"`
		} `json:"videos"`
	} `json:"meta"`
}

// Resolve maps a raw media id ("tt0133093" or "tt0944947:3:9", possibly
// URL-encoded twice by upstream players) to its title record.
func (s *Service) Resolve(ctx context.Context, mediaType, rawID string) (Title, error) {
	imdbID, season, episode, err := ParseMediaID(rawID)
	if err != nil {
		return Title{}, err
	}

	cacheKey := mediaType + "|" + imdbID
	title, hit := s.cache.Get(cacheKey)
	if !hit {
		title, err = s.fetch(ctx, mediaType, imdbID)
		if err != nil {
			return Title{}, err
		}
		s.cache.Add(cacheKey, title)
	}

	title.Season = season
	title.Episode = episode
	return title, nil
}

func (s *Service) fetch(ctx context.Context, mediaType, imdbID string) (Title, error) {
	var lastErr error = ErrNotFound
	for _, base := range s.baseURLs {
		endpoint := fmt.Sprintf("%s/meta/%s/%s.json", strings.TrimRight(base, "/"), mediaType, imdbID)
		title, err := s.fetchOne(ctx, endpoint, imdbID)
		if err == nil {
			return title, nil
		}
		lastErr = err
		log.Printf("[metadata] %s failed for %s: %v", base, imdbID, err)
	}
	return Title{}, lastErr
}

func (s *Service) fetchOne(ctx context.Context, endpoint, imdbID string) (Title, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Title{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Title{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Title{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Title{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Title{}, fmt.Errorf("decode meta: %w", err)
	}
	if payload.Meta.Name == "" {
		return Title{}, ErrNotFound
	}

	return Title{
		IMDBID:    imdbID,
		Title:     payload.Meta.Name,
		Year:      parseYear(payload.Meta.Year),
		RuntimeMS: parseRuntimeMS(payload.Meta.Runtime),
	}, nil
}

var imdbIDRE = regexp.MustCompile(`^(tt\d+)(?::(\d+):(\d+))?$`)

// ParseMediaID splits "tt0944947:3:9" into id, season and episode. Players
// URL-encode ids, sometimes twice, so decoding is applied until stable.
func ParseMediaID(rawID string) (imdbID string, season, episode int, err error) {
	id := strings.TrimSuffix(rawID, ".json")
	for i := 0; i < 2; i++ {
		decoded, decErr := url.QueryUnescape(id)
		if decErr != nil || decoded == id {
			break
		}
		id = decoded
	}

	m := imdbIDRE.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: unrecognized media id %q", ErrNotFound, rawID)
	}
	imdbID = m[1]
	if m[2] != "" {
		season, _ = strconv.Atoi(m[2])
		episode, _ = strconv.Atoi(m[3])
	}
	return imdbID, season, episode, nil
}

var yearRE = regexp.MustCompile(`\d{4}`)

// parseYear handles Cinemeta's "2020" and series-range "2011-2019" forms.
func parseYear(s string) int {
	m := yearRE.FindString(s)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

var runtimeRE = regexp.MustCompile(`(\d+)\s*(?:min|м)`)

// parseRuntimeMS converts Cinemeta's "125 min" runtime strings.
func parseRuntimeMS(s string) int64 {
	m := runtimeRE.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	minutes, _ := strconv.Atoi(m[1])
	return int64(minutes) * 60_000
}
