package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/coingraph/server/internal/agent/graph"
	"github.com/coingraph/server/internal/agent/llm"
	"github.com/coingraph/server/internal/agent/model"
	"github.com/coingraph/server/internal/core"
	"github.com/coingraph/server/internal/market"
	"github.com/coingraph/server/internal/server"
	logx "github.com/coingraph/server/pkg/logger"
	pkgredis "github.com/coingraph/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Market market.Config
	Server server.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Capability model configs
	Analyzer   model.AnalyzerModelConfig
	Reflection model.ReflectionModelConfig
	Formatter  model.FormatterModelConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		logx.Info().Msg("No .env file found, using environment variables")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	logx.Init(core.ParseEnvironment(cfg.Environment))

	// Cache backend is optional: a missing or unreachable Redis degrades to
	// an always-miss cache instead of refusing to start.
	var cache market.Cache = market.NoopCache{}
	if cfg.Redis.URL != "" {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Warn().Err(err).Msg("Redis not available, continuing without caching")
		} else {
			defer rdb.Close()
			cache = market.NewRedisCache(rdb)
			logx.Info().Msg("Connected to Redis")
		}
	} else {
		logx.Info().Msg("No Redis URL configured, running without caching")
	}

	marketSvc := market.New(cfg.Market, cache)

	provider, err := llm.NewProvider(ctx, llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Analyzer:   cfg.Analyzer,
		Reflection: cfg.Reflection,
		Formatter:  cfg.Formatter,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise LLM provider")
	}

	runner, err := graph.Build(ctx, graph.Config{
		Analyzer:  provider,
		Reflector: provider,
		Formatter: provider,
		Market:    marketSvc,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build resolution graph")
	}

	handler := server.NewHandler(runner, cfg.Server)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Environment).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logx.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
