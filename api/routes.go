package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"subrelay/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires all HTTP routes.
func NewRouter(subtitles *handlers.SubtitlesHandler, settings *handlers.SettingsHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/subtitles/download/{token}", subtitles.HandleDownload).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/subtitles/{type}/{id}", subtitles.HandleSearch).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/settings", settings.HandleGet).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/settings", settings.HandleUpdate).Methods(http.MethodPut, http.MethodPost, http.MethodOptions)

	return r
}
