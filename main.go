package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"subrelay/api"
	"subrelay/config"
	"subrelay/handlers"
	"subrelay/services/metadata"
	"subrelay/services/subtitles"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("subrelay starting...")

	configPath := os.Getenv("SUBRELAY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	httpClient := &http.Client{Timeout: 20 * time.Second}
	scrapers := buildScrapersFromConfig(settings, httpClient)
	if len(scrapers) == 0 {
		log.Println("Warning: no providers enabled, searches will return nothing")
	}

	store := subtitles.NewStore(
		time.Duration(settings.Cache.SuccessTTLSeconds)*time.Second,
		time.Duration(settings.Cache.FailureTTLSeconds)*time.Second,
		time.Duration(settings.Cache.ResolvedTTLSeconds)*time.Second,
		settings.Cache.MaxEntries,
	)
	breakers := subtitles.NewBreakerSet(
		settings.Breaker.FailureThreshold,
		time.Duration(settings.Breaker.MuteSeconds)*time.Second,
	)

	searchSvc := subtitles.NewSearchService(scrapers, store, breakers, cfgManager.Get)
	resolveSvc := subtitles.NewResolveService(scrapers, store, cfgManager.Get)
	metadataSvc := metadata.NewService(httpClient, settings.Metadata.BaseURLs, time.Duration(settings.Metadata.TTLSeconds)*time.Second)

	subtitlesHandler := handlers.NewSubtitlesHandler(searchSvc, resolveSvc, metadataSvc, cfgManager)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)

	router := api.NewRouter(subtitlesHandler, settingsHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildScrapersFromConfig turns enabled provider entries into live scrapers.
// Registration order here fixes the tie-break order used during ranking.
func buildScrapersFromConfig(settings config.Settings, client *http.Client) []subtitles.Scraper {
	var scrapers []subtitles.Scraper
	for _, pc := range settings.Providers {
		if !pc.Enabled {
			continue
		}
		providerClient := client
		if pc.TimeoutMs > 0 {
			providerClient = &http.Client{Timeout: time.Duration(pc.TimeoutMs) * time.Millisecond}
		}
		switch pc.Type {
		case "opensubtitles":
			scrapers = append(scrapers, subtitles.NewOpenSubtitlesScraper(providerClient, pc.URL, pc.APIKey, pc.Name))
		case "yavka":
			scrapers = append(scrapers, subtitles.NewYavkaScraper(providerClient, pc.URL, pc.Name))
		case "subsunacs":
			scrapers = append(scrapers, subtitles.NewSubsunacsScraper(providerClient, pc.URL, pc.Name))
		default:
			log.Printf("Warning: unknown provider type %q for %s, skipping", pc.Type, pc.Name)
		}
	}
	return scrapers
}
