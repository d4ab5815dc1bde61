package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"subrelay/config"
	"subrelay/models"
	metadatapkg "subrelay/services/metadata"
	subtitlespkg "subrelay/services/subtitles"
)

type searchService interface {
	Search(context.Context, subtitlespkg.SearchRequest) []subtitlespkg.Ranked
}

type resolveService interface {
	Resolve(context.Context, string) (*subtitlespkg.Document, error)
}

type metadataService interface {
	Resolve(context.Context, string, string) (metadatapkg.Title, error)
}

var (
	_ searchService   = (*subtitlespkg.SearchService)(nil)
	_ resolveService  = (*subtitlespkg.ResolveService)(nil)
	_ metadataService = (*metadatapkg.Service)(nil)
)

type SubtitlesHandler struct {
	Search     searchService
	Resolve    resolveService
	Metadata   metadataService
	CfgManager *config.Manager
}

func NewSubtitlesHandler(search searchService, resolve resolveService, metadata metadataService, cfgManager *config.Manager) *SubtitlesHandler {
	return &SubtitlesHandler{Search: search, Resolve: resolve, Metadata: metadata, CfgManager: cfgManager}
}

// HandleSearch serves GET /api/subtitles/{type}/{id}. The id is a Stremio
// media id; metadata resolution supplies title, year and runtime before the
// provider sweep.
func (h *SubtitlesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := strings.ToLower(strings.TrimSpace(vars["type"]))
	rawID := strings.TrimSpace(vars["id"])
	if mediaType == "" || rawID == "" {
		http.Error(w, "missing media type or id", http.StatusBadRequest)
		return
	}

	title, err := h.Metadata.Resolve(r.Context(), mediaType, rawID)
	if err != nil {
		if errors.Is(err, metadatapkg.ErrNotFound) {
			// Unknown id still answers with an empty list so players
			// fall through to other addons quietly.
			writeJSON(w, http.StatusOK, models.SearchResponse{Subtitles: []models.SubtitleResult{}})
			return
		}
		log.Printf("[subtitles] metadata resolve failed for %s/%s: %v", mediaType, rawID, err)
		http.Error(w, "metadata lookup failed", http.StatusBadGateway)
		return
	}

	req := subtitlespkg.SearchRequest{
		Query:     title.Title,
		Year:      title.Year,
		Season:    title.Season,
		Episode:   title.Episode,
		IMDBID:    title.IMDBID,
		RuntimeMS: title.RuntimeMS,
		Filename:  strings.TrimSpace(r.URL.Query().Get("filename")),
	}
	if fps := r.URL.Query().Get("fps"); fps != "" {
		req.FPS, _ = strconv.ParseFloat(fps, 64)
	}

	requestID := uuid.NewString()

	// Overall deadline above the fan-out; per-provider timeouts are tighter.
	ctx := r.Context()
	if h.CfgManager != nil {
		if ms := h.CfgManager.Get().Search.RequestTimeoutMs; ms > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
			defer cancel()
		}
	}

	ranked := h.Search.Search(ctx, req)

	results := make([]models.SubtitleResult, 0, len(ranked))
	for _, item := range ranked {
		results = append(results, models.SubtitleResult{
			ID:       item.Token,
			Language: subtitlespkg.Language,
			Lang:     subtitlespkg.LanguageISO2,
			Label:    displayLabel(item.Candidate),
			Filename: item.Candidate.FileName,
			Format:   orDefault(item.Candidate.Format, "srt"),
			Source:   item.Candidate.Source,
			Token:    item.Token,
			Score:    item.Score,
		})
	}
	writeJSON(w, http.StatusOK, models.SearchResponse{RequestID: requestID, Subtitles: results})
}

// HandleDownload serves GET /api/subtitles/download/{token}.
func (h *SubtitlesHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	doc, err := h.Resolve.Resolve(r.Context(), token)
	if err != nil {
		status, message := downloadErrorStatus(err)
		log.Printf("[subtitles] download failed: %v", err)
		http.Error(w, message, status)
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == doc.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("ETag", doc.ETag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Content)
}

// downloadErrorStatus maps resolver failures to transport codes without
// leaking provider internals to the client.
func downloadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, subtitlespkg.ErrInvalidToken):
		return http.StatusBadRequest, "invalid token"
	case errors.Is(err, subtitlespkg.ErrNotFound):
		return http.StatusNotFound, "subtitle not found"
	// A runtime mismatch drops the subtitle rather than reporting a provider
	// failure; to the caller the file simply is not there.
	case errors.Is(err, subtitlespkg.ErrRuntimeMismatch):
		return http.StatusNotFound, "subtitle not found"
	case errors.Is(err, subtitlespkg.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported subtitle format"
	case errors.Is(err, subtitlespkg.ErrArchiveExtraction),
		errors.Is(err, subtitlespkg.ErrMalformedSubtitle):
		return http.StatusBadGateway, "subtitle unusable"
	case errors.Is(err, subtitlespkg.ErrProviderTimeout),
		errors.Is(err, subtitlespkg.ErrProviderUnavailable):
		return http.StatusBadGateway, "provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

const maxLabelLen = 96

// displayLabel renders "[UNACS] Movie.2020.1080p" style lines for players
// that show a single string per subtitle.
func displayLabel(c subtitlespkg.Candidate) string {
	summary := strings.Join(strings.Fields(c.Summary), " ")
	if summary == "" {
		summary = c.FileName
	}
	label := summary
	if c.Label != "" {
		label = "[" + c.Label + "] " + summary
	}
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	return label
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[subtitles] encode response: %v", err)
	}
}
