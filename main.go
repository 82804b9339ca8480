package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"flixrank/config"
	"flixrank/handlers"
	"flixrank/internal/database"
	"flixrank/internal/tasks"
	"flixrank/services/cache"
	"flixrank/services/catalog"
	"flixrank/services/match"
	"flixrank/services/netflix"
	"flixrank/services/poster"
	"flixrank/services/scrobble"
	"flixrank/services/sessions"
	"flixrank/services/tmdb"
	"flixrank/services/trakt"
	"flixrank/utils"
)

func main() {
	cfg, err := config.Load(os.Getenv("FLIXRANK_CONFIG"))
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	if !cfg.TraktConfigured() {
		log.Println("[main] trakt client id/secret not set; account linking disabled")
	}
	if cfg.TMDBAPIKey == "" {
		log.Println("[main] tmdb api key not set; search and enrichment will fail")
	}

	stop := make(chan struct{})

	// Cache backend: disk-backed when a DSN is configured, otherwise pure
	// memory.
	var store cache.Store
	if cfg.CacheDB != "" {
		db, err := database.Open(cfg.CacheDB)
		if err != nil {
			log.Fatalf("[main] cache db: %v", err)
		}
		defer db.Close()
		sqliteStore := cache.NewSQLite(db)
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					sqliteStore.Sweep()
				case <-stop:
					return
				}
			}
		}()
		store = sqliteStore
		log.Printf("[main] cache backed by sqlite at %s", cfg.CacheDB)
	} else {
		mem := cache.NewMemory()
		mem.StartSweeper(10*time.Minute, stop)
		store = mem
	}

	traktClient := trakt.NewClient(cfg.TraktClientID, cfg.TraktClientSecret)
	tmdbClient := tmdb.NewClient(cfg.TMDBAPIKey, cfg.TMDBLanguage, nil, store)
	engine := match.NewEngine(tmdbClient)

	sessionsSvc, err := sessions.NewService(cfg.DataDir, traktClient, cfg.RedirectURI())
	if err != nil {
		log.Fatalf("[main] sessions: %v", err)
	}
	sessionsSvc.StartSweeper(time.Hour, stop)

	netflixSvc := netflix.NewService(nil, engine, tmdbClient, store, cfg.BaseURL)
	catalogSvc := catalog.NewService(traktClient, sessionsSvc, tmdbClient, netflixSvc, store)
	compositor := poster.NewCompositor(nil, tmdbClient, store)
	syncer := scrobble.NewSyncer(sessionsSvc, traktClient, engine, tmdbClient)
	runner := tasks.NewRunner()

	router := utils.NewRouter()
	handlers.Register(router, handlers.Deps{
		Manifest: handlers.NewManifestHandler(),
		Catalog:  handlers.NewCatalogHandler(catalogSvc),
		Stream:   handlers.NewStreamHandler(syncer, runner),
		Poster:   handlers.NewPosterHandler(compositor),
		Auth:     handlers.NewAuthHandler(traktClient, sessionsSvc, store, cfg.BaseURL, cfg.RedirectURI()),
		Admin:    handlers.NewAdminHandler(store, cfg.AdminToken),
		Import:   handlers.NewImportHandler(syncer),
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s (public url %s)", cfg.Addr(), cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("[main] shutting down")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}

	// Let in-flight scrobbles finish before the process exits.
	if !runner.Wait(10 * time.Second) {
		log.Println("[main] background tasks did not drain in time")
	}
}
