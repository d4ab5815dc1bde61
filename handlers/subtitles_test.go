package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"subrelay/models"
	metadatapkg "subrelay/services/metadata"
	subtitlespkg "subrelay/services/subtitles"
)

type stubSearch struct{ ranked []subtitlespkg.Ranked }

func (s stubSearch) Search(context.Context, subtitlespkg.SearchRequest) []subtitlespkg.Ranked {
	return s.ranked
}

type stubResolve struct {
	doc *subtitlespkg.Document
	err error
}

func (s stubResolve) Resolve(context.Context, string) (*subtitlespkg.Document, error) {
	return s.doc, s.err
}

type stubMetadata struct {
	title metadatapkg.Title
	err   error
}

func (s stubMetadata) Resolve(context.Context, string, string) (metadatapkg.Title, error) {
	return s.title, s.err
}

func newRouter(h *SubtitlesHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/subtitles/download/{token}", h.HandleDownload).Methods(http.MethodGet)
	r.HandleFunc("/api/subtitles/{type}/{id}", h.HandleSearch).Methods(http.MethodGet)
	return r
}

func TestHandleSearchRendersResults(t *testing.T) {
	h := NewSubtitlesHandler(
		stubSearch{ranked: []subtitlespkg.Ranked{{
			Candidate: subtitlespkg.Candidate{Source: "subsunacs", Label: "UNACS", Summary: "Movie.2020.1080p", FileName: "movie.srt"},
			Score:     97,
			Token:     "tok123",
		}}},
		stubResolve{},
		stubMetadata{title: metadatapkg.Title{Title: "Movie", Year: 2020, IMDBID: "tt1"}},
		nil,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/subtitles/movie/tt1", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Subtitles) != 1 {
		t.Fatalf("got %d subtitles, want 1", len(resp.Subtitles))
	}
	s := resp.Subtitles[0]
	if s.Label != "[UNACS] Movie.2020.1080p" {
		t.Errorf("label = %q", s.Label)
	}
	if s.Language != "Bulgarian" || s.Lang != "bul" {
		t.Errorf("language = %q/%q, want Bulgarian/bul", s.Language, s.Lang)
	}
	if s.Token != "tok123" || s.Format != "srt" {
		t.Errorf("token/format = %q/%q", s.Token, s.Format)
	}
}

func TestHandleSearchUnknownIDReturnsEmptyList(t *testing.T) {
	h := NewSubtitlesHandler(stubSearch{}, stubResolve{}, stubMetadata{err: metadatapkg.ErrNotFound}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/subtitles/movie/garbage", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty list", rec.Code)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Subtitles) != 0 {
		t.Errorf("got %d subtitles, want 0", len(resp.Subtitles))
	}
}

func TestHandleDownloadServesDocument(t *testing.T) {
	h := NewSubtitlesHandler(stubSearch{}, stubResolve{doc: &subtitlespkg.Document{
		Filename:    "movie.srt",
		Content:     []byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n"),
		ContentType: "text/plain; charset=utf-8",
		ETag:        `"abc"`,
	}}, stubMetadata{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/subtitles/download/sometoken", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="movie.srt"` {
		t.Errorf("disposition = %q", got)
	}
	if got := rec.Header().Get("ETag"); got != `"abc"` {
		t.Errorf("etag = %q", got)
	}
}

func TestHandleDownloadETagShortCircuits(t *testing.T) {
	h := NewSubtitlesHandler(stubSearch{}, stubResolve{doc: &subtitlespkg.Document{ETag: `"abc"`}}, stubMetadata{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/subtitles/download/sometoken", nil)
	req.Header.Set("If-None-Match", `"abc"`)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
}

func TestHandleDownloadErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{subtitlespkg.ErrInvalidToken, http.StatusBadRequest},
		{subtitlespkg.ErrNotFound, http.StatusNotFound},
		{subtitlespkg.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{subtitlespkg.ErrRuntimeMismatch, http.StatusNotFound},
		{subtitlespkg.ErrArchiveExtraction, http.StatusBadGateway},
		{subtitlespkg.ErrProviderUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		h := NewSubtitlesHandler(stubSearch{}, stubResolve{err: tc.err}, stubMetadata{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/subtitles/download/sometoken", nil)
		rec := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("err %v mapped to %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}
