package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func metaServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/meta/movie/tt0133093.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"meta":{"id":"tt0133093","name":"The Matrix","year":"1999","runtime":"136 min"}}`))
	}))
}

func TestResolveMovie(t *testing.T) {
	srv := metaServer(t, nil)
	defer srv.Close()

	svc := NewService(srv.Client(), []string{srv.URL}, time.Minute)
	title, err := svc.Resolve(context.Background(), "movie", "tt0133093")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if title.Title != "The Matrix" || title.Year != 1999 {
		t.Errorf("title = %+v", title)
	}
	if title.RuntimeMS != 136*60_000 {
		t.Errorf("runtime = %d, want %d", title.RuntimeMS, 136*60_000)
	}
}

func TestResolveCaches(t *testing.T) {
	var calls atomic.Int32
	srv := metaServer(t, &calls)
	defer srv.Close()

	svc := NewService(srv.Client(), []string{srv.URL}, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(context.Background(), "movie", "tt0133093"); err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func TestResolveFallsBackToSecondBaseURL(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := metaServer(t, nil)
	defer up.Close()

	svc := NewService(up.Client(), []string{down.URL, up.URL}, time.Minute)
	title, err := svc.Resolve(context.Background(), "movie", "tt0133093")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if title.Title != "The Matrix" {
		t.Errorf("title = %+v", title)
	}
}

func TestResolveUnknownIDIsNotFound(t *testing.T) {
	svc := NewService(nil, nil, time.Minute)
	if _, err := svc.Resolve(context.Background(), "movie", "not-an-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestParseMediaID(t *testing.T) {
	cases := []struct {
		in      string
		id      string
		season  int
		episode int
		wantErr bool
	}{
		{"tt0133093", "tt0133093", 0, 0, false},
		{"tt0944947:3:9", "tt0944947", 3, 9, false},
		{"tt0944947%3A3%3A9", "tt0944947", 3, 9, false},
		{"tt0944947%253A3%253A9", "tt0944947", 3, 9, false}, // double-encoded
		{"tt0133093.json", "tt0133093", 0, 0, false},
		{"garbage", "", 0, 0, true},
	}
	for _, tc := range cases {
		id, season, episode, err := ParseMediaID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMediaID(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMediaID(%q): %v", tc.in, err)
			continue
		}
		if id != tc.id || season != tc.season || episode != tc.episode {
			t.Errorf("ParseMediaID(%q) = %q,%d,%d", tc.in, id, season, episode)
		}
	}
}
