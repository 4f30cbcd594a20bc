// Package main is the entry point for the identity gateway server.
//
// The server resolves player identifiers across four platforms (Minecraft,
// Steam, Xbox, Hytale) behind a single HTTP surface, fronted by an edge
// response cache and backed by a persistent profile cache. Initialization
// order:
//
//  1. Configuration: environment variables via caarlos0/env
//  2. Logging: zerolog, structured JSON by default
//  3. Persistent cache: embedded Badger store
//  4. Transport: HTTPS/raw-TLS/proxy fallback client shared by every pipeline
//  5. Analytics sink: embedded DuckDB, one row per request
//  6. Hytale session manager: singleton OAuth + session pool
//  7. Platform pipelines: Minecraft, Steam, Xbox, Hytale
//  8. Hytale token rotation scheduler
//  9. HTTP server, with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nodecraft/identity-gateway/internal/analytics"
	"github.com/nodecraft/identity-gateway/internal/api"
	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/config"
	hytalesession "github.com/nodecraft/identity-gateway/internal/hytale"
	"github.com/nodecraft/identity-gateway/internal/identity/hytale"
	"github.com/nodecraft/identity-gateway/internal/identity/minecraft"
	"github.com/nodecraft/identity-gateway/internal/identity/steam"
	"github.com/nodecraft/identity-gateway/internal/identity/xbox"
	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/scheduler"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.DefaultConfig())
	logging.Info().Str("addr", cfg.Addr).Bool("bypass_cache", cfg.BypassCache).Msg("starting identity gateway")

	badgerStore, err := cache.OpenBadgerStore(cfg.BadgerDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open badger cache")
	}
	defer func() {
		if err := badgerStore.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing badger cache")
		}
	}()

	edgeStore := cache.NewMemoryStore()
	defer edgeStore.Close()

	group := background.New()

	facade := cache.NewFacade(badgerStore, cfg.BypassCache, group)

	transportClient := transport.NewClient(cfg.ProxyURLs)

	analyticsSink, err := analytics.Open(cfg.AnalyticsDBPath, group)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open analytics sink")
	}
	defer func() {
		if err := analyticsSink.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing analytics sink")
		}
	}()

	hytaleManager := hytalesession.GetManager(badgerStore, transportClient, hytalesession.Config{
		RefreshToken: cfg.HytaleRefreshToken,
		ProfileUUID:  cfg.HytaleProfileUUID,
		MinPool:      cfg.HytaleSessionMin,
		MaxPool:      cfg.HytaleSessionMax,
	})

	minecraftPipeline := minecraft.New(transportClient, facade, cfg.NodecraftAPIKey)
	steamPipeline := steam.New(transportClient, facade, cfg.SteamAPIKeys)
	defer steamPipeline.Close()
	xboxPipeline := xbox.New(transportClient, facade, cfg.XboxAPIKey)
	hytalePipeline := hytale.New(transportClient, facade, hytaleManager)

	rotator := scheduler.New(hytaleManager, scheduler.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rotator.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to start hytale token rotation")
	}

	router := api.NewRouter(api.Deps{
		Minecraft:     minecraftPipeline.Lookup,
		Steam:         steamPipeline.Lookup,
		Xbox:          xboxPipeline.Lookup,
		Hytale:        hytalePipeline.Lookup,
		EdgeStore:     edgeStore,
		Group:         group,
		Analytics:     analyticsSink,
		HytaleManager: hytaleManager,
		BadgerStore:   badgerStore,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during http server shutdown")
	}

	if err := rotator.Stop(); err != nil {
		logging.Error().Err(err).Msg("error stopping hytale token rotation")
	}

	cancel()
	group.Wait(shutdownCtx)

	logging.Info().Msg("identity gateway stopped gracefully")
}
