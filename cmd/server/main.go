package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"danmaku-ingest/internal/ingest"
	"danmaku-ingest/internal/media"
	"danmaku-ingest/internal/platform/config"
	"danmaku-ingest/internal/platform/logger"
	"danmaku-ingest/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	registry := media.NewRegistry()
	svc := ingest.NewService(registry, ingest.ServiceConfig{
		DecodeWorkers: cfg.DecodeWorkers,
		CacheSourceID: cfg.CacheSourceID,
	})
	met := metrics.New()
	h := ingest.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetCachedMedia(svc.CachedCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"decode_workers", cfg.DecodeWorkers,
		"cache_source_id", cfg.CacheSourceID,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
