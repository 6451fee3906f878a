package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayane-dev/musubi/internal/api"
	"github.com/ayane-dev/musubi/internal/config"
	"github.com/ayane-dev/musubi/internal/graph"
	"github.com/ayane-dev/musubi/internal/identity"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/metrics"
	"github.com/ayane-dev/musubi/internal/session"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/storage"
	"github.com/ayane-dev/musubi/internal/tagdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	m := metrics.NewPrometheusMetrics()

	opts := []session.Option{session.WithObserver(m)}
	if cfg.RedisAddr != "" {
		cache, err := storage.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL, logg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis cache: %v", err)
		}
		defer cache.Close()
		opts = append(opts, session.WithCache(cache))
	}
	if len(cfg.HeadlessHosts) > 0 {
		opts = append(opts, session.WithHeadless(session.NewHeadlessFetcher(logg, cfg.HeadlessNoSandbox)))
	}
	sess := session.NewHTTPSession(cfg, logg, opts...)

	env := &sources.Env{Fetcher: sess, Logger: logg}
	registry := sources.MustRegistry(sources.DefaultParsers(env)...)
	resolver := sources.NewResolver(registry, env)
	resolver.SetObserver(m)
	env.Resolve = resolver.Parse

	walker := graph.NewWalker(logg, m)

	tags, err := tagdb.Open(cfg.TagDBPath, logg)
	if err != nil {
		log.Fatalf("Failed to open tag database: %v", err)
	}
	defer tags.Close()

	ident := identity.NewResolver(tags, nil, logg)

	var jobs api.JobStorage
	if cfg.RedisAddr != "" {
		jobs, err = storage.NewJobStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL, logg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis job store: %v", err)
		}
	} else {
		logg.Warn("No Redis address configured, resolve jobs will not survive restarts")
		jobs = storage.NewMemoryJobStore()
	}
	defer jobs.Close()

	handler := api.NewAPIHandler(resolver, walker, ident, jobs, tags, cfg, m, logg)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logg.Info("Starting musubi API server on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logg.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("Graceful shutdown failed: %v", err)
	}
}
