package subtitles

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"subrelay/config"
)

// SearchService fans a request out to all registered providers, applies
// caching and circuit breaking per provider, and returns a ranked list.
// Search never returns an error: total provider failure yields an empty list.
type SearchService struct {
	scrapers []Scraper
	order    map[string]int
	store    *Store
	breakers *BreakerSet
	settings func() config.Settings
	group    singleflight.Group

	mu       sync.Mutex
	lastCall map[string]time.Time // per-provider pacing
}

// NewSearchService wires the fan-out engine. The settings func is re-read on
// every request so config changes apply without a restart.
func NewSearchService(scrapers []Scraper, store *Store, breakers *BreakerSet, settings func() config.Settings) *SearchService {
	order := make(map[string]int, len(scrapers))
	for i, s := range scrapers {
		order[s.Name()] = i
	}
	return &SearchService{
		scrapers: scrapers,
		order:    order,
		store:    store,
		breakers: breakers,
		settings: settings,
		lastCall: make(map[string]time.Time),
	}
}

// Search returns ranked candidates for the request. Identical concurrent
// requests are coalesced into a single provider sweep.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) []Ranked {
	requestID := uuid.NewString()

	if ranked, ok := s.store.ResultHit(req); ok {
		log.Printf("[aggregator] request=%s query=%q cache=hit results=%d", requestID, req.Query, len(ranked))
		return ranked
	}

	result, err, shared := s.group.Do(queryKey(req), func() (interface{}, error) {
		return s.sweep(ctx, requestID, req), nil
	})
	if err != nil {
		return nil
	}
	ranked, _ := result.([]Ranked)
	if shared {
		log.Printf("[aggregator] request=%s query=%q coalesced results=%d", requestID, req.Query, len(ranked))
	}
	return ranked
}

func (s *SearchService) sweep(ctx context.Context, requestID string, req SearchRequest) []Ranked {
	cfg := s.settings()
	limit := cfg.Search.ConcurrencyLimit
	if limit <= 0 {
		limit = 5
	}
	providerTimeout := time.Duration(cfg.Search.ProviderTimeoutMs) * time.Millisecond

	var mu sync.Mutex
	byProvider := make(map[string][]Candidate)

	p := pool.New().WithMaxGoroutines(limit)
	for _, scraper := range s.scrapers {
		scraper := scraper
		p.Go(func() {
			candidates, err := s.queryProvider(ctx, requestID, scraper, req, providerTimeout, cfg)
			if err != nil || len(candidates) == 0 {
				return
			}
			mu.Lock()
			byProvider[scraper.Name()] = candidates
			mu.Unlock()
		})
	}
	p.Wait()

	ranked := rank(byProvider, s.order, req, cfg.Scoring, cfg.Search.PerProviderCap, cfg.Search.GlobalCap)
	for i := range ranked {
		token, err := EncodeToken(TokenPayload{
			Source:    ranked[i].Candidate.Source,
			Ref:       ranked[i].Candidate.Ref,
			Params:    ranked[i].Candidate.Params,
			FPS:       ranked[i].Candidate.FPS,
			RuntimeMS: req.RuntimeMS,
			Filename:  ranked[i].Candidate.FileName,
		})
		if err != nil {
			log.Printf("[aggregator] request=%s token encode failed for %s: %v", requestID, ranked[i].Candidate.Source, err)
			continue
		}
		ranked[i].Token = token
	}

	s.store.StoreResult(req, ranked)
	log.Printf("[aggregator] request=%s query=%q providers=%d results=%d", requestID, req.Query, len(byProvider), len(ranked))
	return ranked
}

func (s *SearchService) queryProvider(ctx context.Context, requestID string, scraper Scraper, req SearchRequest, timeout time.Duration, cfg config.Settings) ([]Candidate, error) {
	name := scraper.Name()

	if candidates, hit, failed := s.store.ProviderHit(name, req); hit {
		log.Printf("[cache] provider=%s hit=success count=%d", name, len(candidates))
		return candidates, nil
	} else if failed {
		log.Printf("[cache] provider=%s hit=failure", name)
		return nil, ErrProviderUnavailable
	}

	s.pace(name, cfg)

	start := time.Now()
	candidates, err := s.breakers.Execute(name, func() ([]Candidate, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		out, err := scraper.Search(callCtx, req)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrProviderTimeout
		}
		return out, err
	})
	duration := time.Since(start)

	timedOut := errors.Is(err, ErrProviderTimeout)
	log.Printf("[metrics] provider=%s duration_ms=%d count=%d success=%t timeout=%t",
		name, duration.Milliseconds(), len(candidates), err == nil, timedOut)

	if err != nil {
		s.store.StoreFailure(name, req, err.Error())
		log.Printf("[aggregator] request=%s provider=%s failed: %v", requestID, name, err)
		return nil, err
	}

	s.store.StoreProvider(name, req, candidates)
	return candidates, nil
}

// pace enforces the provider's configured minimum interval between live
// calls. The wait happens outside the breaker so pacing does not count as
// provider latency.
func (s *SearchService) pace(provider string, cfg config.Settings) {
	var minInterval time.Duration
	for _, pc := range cfg.Providers {
		if pc.Name == provider && pc.MinIntervalMs > 0 {
			minInterval = time.Duration(pc.MinIntervalMs) * time.Millisecond
			break
		}
	}
	if minInterval == 0 {
		return
	}

	s.mu.Lock()
	last, ok := s.lastCall[provider]
	now := time.Now()
	wait := time.Duration(0)
	if ok {
		if elapsed := now.Sub(last); elapsed < minInterval {
			wait = minInterval - elapsed
		}
	}
	s.lastCall[provider] = now.Add(wait)
	s.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}
