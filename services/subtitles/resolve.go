package subtitles

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"

	"subrelay/config"
	"subrelay/internal/extract"
	"subrelay/internal/srtkit"
)

// Document is a fully post-processed subtitle ready to serve.
type Document struct {
	Filename    string
	Content     []byte
	ContentType string
	Format      string
	ETag        string
}

// ResolveService turns a download token back into subtitle bytes: fetch with
// retries, unpack, transcode, repair and runtime-check.
type ResolveService struct {
	downloaders map[string]Downloader
	store       *Store
	settings    func() config.Settings
	group       singleflight.Group
}

// NewResolveService indexes downloaders by provider name.
func NewResolveService(scrapers []Scraper, store *Store, settings func() config.Settings) *ResolveService {
	downloaders := make(map[string]Downloader, len(scrapers))
	for _, s := range scrapers {
		if d, ok := s.(Downloader); ok {
			downloaders[s.Name()] = d
		}
	}
	return &ResolveService{downloaders: downloaders, store: store, settings: settings}
}

// Resolve fetches and post-processes the subtitle a token points at.
// Concurrent requests for the same token share one download.
func (r *ResolveService) Resolve(ctx context.Context, token string) (*Document, error) {
	payload, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	downloader, ok := r.downloaders[payload.Source]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotFound, payload.Source)
	}

	if doc, hit := r.store.ResolvedHit(token); hit {
		return doc, nil
	}

	result, err, _ := r.group.Do(token, func() (interface{}, error) {
		return r.resolve(ctx, token, payload, downloader)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Document), nil
}

func (r *ResolveService) resolve(ctx context.Context, token string, payload TokenPayload, downloader Downloader) (*Document, error) {
	raw, err := r.fetch(ctx, payload, downloader)
	if err != nil {
		return nil, err
	}

	signature := Signature(raw.Data)
	if r.store.IsPlaceholder(signature) {
		return nil, fmt.Errorf("%w: known placeholder payload", ErrNotFound)
	}

	data := raw.Data
	filename := firstNonEmpty(payload.Filename, raw.Filename)

	if extract.IsArchive(data) {
		entry, err := extract.Subtitle(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArchiveExtraction, err)
		}
		data = entry.Data
		if entry.Name != "" {
			filename = entry.Name
		}
	}

	if srtkit.IsBinary(data) {
		r.store.MarkPlaceholder(signature)
		return nil, fmt.Errorf("%w: binary payload from %s", ErrUnsupportedFormat, payload.Source)
	}

	data, err = extract.ToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	text := string(data)
	if srtkit.IsMicroDVD(text) {
		cues := srtkit.FromMicroDVD(text, payload.FPS)
		if len(cues) == 0 {
			return nil, fmt.Errorf("%w: empty frame-based subtitle", ErrMalformedSubtitle)
		}
		text = srtkit.Render(cues)
	} else if !srtkit.LooksTextualSub(data) {
		r.store.MarkPlaceholder(signature)
		return nil, fmt.Errorf("%w: payload is not timed subtitle text", ErrUnsupportedFormat)
	}

	text, err = r.fitRuntime(text, payload)
	if err != nil {
		return nil, err
	}

	text = srtkit.Sanitize(text, payload.RuntimeMS, "")
	if err := srtkit.Validate(text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSubtitle, err)
	}

	doc := &Document{
		Filename:    sanitizeFilename(filename),
		Content:     []byte(text),
		ContentType: "text/plain; charset=utf-8",
		Format:      "srt",
		ETag:        etag(text),
	}
	r.store.StoreResolved(token, doc)
	return doc, nil
}

// fetch downloads the raw payload with bounded retries. Transient provider
// errors retry; context cancellation does not.
func (r *ResolveService) fetch(ctx context.Context, payload TokenPayload, downloader Downloader) (*Payload, error) {
	var out *Payload
	err := retry.Do(
		func() error {
			p, err := downloader.Download(ctx, payload.Ref, payload.Params)
			if err != nil {
				return err
			}
			if len(p.Data) == 0 {
				return fmt.Errorf("empty payload")
			}
			out = p
			return nil
		},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return out, nil
}

// fitRuntime compares the subtitle's span against the expected media runtime.
// Small drift rescales the timeline; drift beyond tolerance rejects the file.
func (r *ResolveService) fitRuntime(text string, payload TokenPayload) (string, error) {
	if payload.RuntimeMS <= 0 {
		return text, nil
	}
	subMS := srtkit.Duration(text)
	if subMS <= 0 {
		return text, nil
	}
	tolerance := r.settings().Runtime.DriftTolerance
	if tolerance <= 0 {
		tolerance = 0.15
	}
	drift := math.Abs(float64(subMS)-float64(payload.RuntimeMS)) / float64(payload.RuntimeMS)
	if drift == 0 {
		return text, nil
	}
	if drift > tolerance {
		log.Printf("[runtime] provider=%s sub_ms=%d want_ms=%d drift=%.3f rejected", payload.Source, subMS, payload.RuntimeMS, drift)
		return "", fmt.Errorf("%w: subtitle spans %dms, media runs %dms", ErrRuntimeMismatch, subMS, payload.RuntimeMS)
	}
	ratio := float64(payload.RuntimeMS) / float64(subMS)
	scaled, err := srtkit.Scale(text, ratio)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSubtitle, err)
	}
	log.Printf("[runtime] provider=%s sub_ms=%d want_ms=%d drift=%.3f rescaled ratio=%.4f", payload.Source, subMS, payload.RuntimeMS, drift, ratio)
	return scaled, nil
}

var unsafeFilenameRE = regexp.MustCompile(`[^a-zA-Z0-9._ -]+`)

// sanitizeFilename flattens a provider path to a safe attachment name and
// forces an .srt extension, since output is always SRT after repair.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, path.Ext(name))
	name = unsafeFilenameRE.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, "._ ")
	if name == "" {
		name = "subtitle"
	}
	return name + ".srt"
}

func etag(text string) string {
	sum := sha1.Sum([]byte(text))
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
