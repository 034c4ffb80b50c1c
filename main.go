package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cacheredis "github.com/wanderwise/wanderwise/cache/redis"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/orchestrator"
	"github.com/wanderwise/wanderwise/planner"
	progressredis "github.com/wanderwise/wanderwise/progress/redis"
	kafkaqueue "github.com/wanderwise/wanderwise/queue/kafka"
	"github.com/wanderwise/wanderwise/repository/postgres"
	"github.com/wanderwise/wanderwise/service/airports"
	httpservice "github.com/wanderwise/wanderwise/service/http"
	"github.com/wanderwise/wanderwise/service/llm"
)

func main() {
	// Initialize configuration
	// Try to load from config.yaml first, fallback to environment variables
	cfg, err := config.Initialise("config.yaml", false)
	if err != nil {
		stdlog.Printf("Config file not found or invalid, using environment variables: %v", err)
		cfg, err = config.Initialise("", true)
		if err != nil {
			stdlog.Fatal("Failed to load configuration:", err)
		}
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: cfg.Log.ServiceName + "-api",
	})
	logger.BridgeStdlib(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace)
	m.Register(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize cache, ready signals and progress on one Redis client
	redisClient, err := cacheredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache")
	}
	defer redisClient.Close()
	flightCache := cacheredis.NewRedisFlightCache(redisClient)
	progressChannel := progressredis.NewProgressChannel(redisClient)

	// Initialize repository
	history, err := postgres.NewFlightRepository(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize repository")
	}

	// Initialize Kafka publisher
	publisher := kafkaqueue.NewJobPublisher(cfg.Kafka)
	defer publisher.Close()

	flights := orchestrator.NewCacheAsideOrchestrator(
		flightCache,
		flightCache,
		publisher,
		orchestrator.Config{
			PollInterval: cfg.Orchestrator.PollInterval,
			MaxWait:      cfg.Orchestrator.MaxWait,
		},
		m,
		log,
	)

	countries, err := airports.NewDirectory()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load airport directory")
	}

	opinions, err := llm.NewOpinionService(ctx, &cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize opinion model")
	}

	tripPlanner := planner.NewPlanner(
		flights,
		countries,
		httpservice.NewNYTimesNewsSearcher(&cfg.NYTimes, m),
		opinions,
		history,
		log,
	)

	handler := NewFlightHandler(
		flights,
		tripPlanner,
		progressChannel,
		map[string]Pinger{"redis": flightCache, "postgres": history},
		cfg.Progress.StreamTimeout,
	)

	router := SetupRouter(cfg, handler, log, m, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting WanderWise API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.MaxWait+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("Server stopped gracefully")
}
