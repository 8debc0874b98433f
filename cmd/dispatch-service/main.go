package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dispatch-service/internal/auth"
	"dispatch-service/internal/cache"
	"dispatch-service/internal/config"
	"dispatch-service/internal/db"
	httphandler "dispatch-service/internal/http"
	"dispatch-service/internal/http/middleware"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/service"
	"dispatch-service/internal/sheet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sheetMetrics := metrics.New(registry)

	readCache, err := newCache(cfg.Cache, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to cache")
	}

	workbook, err := sheet.OpenWorkbook(cfg.Sheet.WorkbookPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Sheet.WorkbookPath).Msg("failed to open workbook")
	}
	defer workbook.Close()

	gateway := sheet.NewGateway(workbook, readCache, sheet.Options{
		CacheTTL:         cfg.Sheet.CacheTTL,
		RateLimitRetries: cfg.Sheet.RateLimitRetries,
		RateLimitBackoff: cfg.Sheet.RateLimitBackoff,
	}, sheetMetrics, log.With().Str("component", "sheet").Logger())

	donePolicy, err := service.ParseDonePolicy(cfg.Dispatch.DonePolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid done policy")
	}

	statusLogRepo := repository.NewStatusLogRepository(database)
	dispatchService := service.NewDispatchService(gateway, statusLogRepo, donePolicy, log)
	stationService := service.NewStationService(gateway, log)

	backfillCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if _, err := stationService.Backfill(backfillCtx); err != nil {
		log.Fatal().Err(err).Msg("station backfill failed")
	}
	if _, err := dispatchService.Backfill(backfillCtx); err != nil {
		log.Fatal().Err(err).Msg("fault backfill failed")
	}
	cancel()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(dispatchService, stationService, cfg.Sheet.RateLimitBackoff, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), httphandler.RouterOptions{
		Env:             cfg.Environment,
		RateLimit:       cfg.HTTP.RateLimit,
		RateLimitWindow: cfg.HTTP.RateLimitWindow,
		Metrics:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().
		Str("addr", addr).
		Str("workbook", cfg.Sheet.WorkbookPath).
		Str("done_policy", string(donePolicy)).
		Msg("starting dispatch service")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newCache(cfg config.CacheConfig, log zerolog.Logger) (cache.Cache, error) {
	if cfg.Backend != "redis" {
		return cache.NewMemory(time.Now), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis read cache")
	return client, nil
}
