package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cankoe/misuse-recorder/internal/api"
	"github.com/cankoe/misuse-recorder/internal/capture"
	"github.com/cankoe/misuse-recorder/internal/geo"
	"github.com/cankoe/misuse-recorder/internal/helpers"
	"github.com/cankoe/misuse-recorder/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := helpers.InitializeCommonComponents(ctx, "server")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer components.CloseAll(context.Background())
	cfg := components.Config

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	resolver := geo.NewResolver(
		geo.NewRedisCache(components.RedisClient, cfg.Geo.CacheTTL),
		geo.NewRedisLocker(components.RedisClient, cfg.Geo.LockTTL, cfg.Geo.LockWait),
		geo.NewIPInfoLocator(cfg.Geo.Token, cfg.Geo.LookupTimeout),
		cfg.Geo.LookupTimeout,
	)

	pipeline := capture.NewPipeline(resolver, components.History, capture.Options{
		Workers:      cfg.Workers.Count,
		QueueSize:    cfg.Workers.QueueSize,
		StoreTimeout: cfg.Store.Timeout,
	})
	pipeline.Start(ctx)

	png, err := api.LoadPNG(cfg.Response.PNGPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load response image")
	}
	responder, err := api.NewResponder(cfg.Response.Type, png)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build responder")
	}

	router, err := api.NewRouter(api.Dependencies{
		History:        components.History,
		Pipeline:       pipeline,
		Responder:      responder,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("response", cfg.Response.Type).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			log.Info().Str("addr", metricsSrv.Addr).Msg("Metrics server started")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if err := pipeline.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Some capture jobs were not persisted")
	}

	log.Info().Msg("Server exited gracefully")
}
