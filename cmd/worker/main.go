package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cacheredis "github.com/wanderwise/wanderwise/cache/redis"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
	progressredis "github.com/wanderwise/wanderwise/progress/redis"
	kafkaqueue "github.com/wanderwise/wanderwise/queue/kafka"
	"github.com/wanderwise/wanderwise/repository/postgres"
	httpservice "github.com/wanderwise/wanderwise/service/http"
	"github.com/wanderwise/wanderwise/worker"
)

func main() {
	// Load configuration (fallback to env variables if config file not found)
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
		ServiceName: cfg.Log.ServiceName + "-worker",
	})
	logger.BridgeStdlib(log)
	log.Info().Msg("Starting flight search worker")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace)
	m.Register(reg)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize cache and progress on one Redis client
	redisClient, err := cacheredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache")
	}
	defer redisClient.Close()
	flightCache := cacheredis.NewRedisFlightCache(redisClient)
	progressChannel := progressredis.NewProgressChannel(redisClient)

	// Initialize price history repository
	history, err := postgres.NewFlightRepository(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize repository")
	}

	searcher := httpservice.NewAmadeusFlightSearcher(&cfg.Amadeus, m)

	// Setup Kafka consumer
	consumer := kafkaqueue.NewJobConsumer(cfg.Kafka, m, log)
	defer consumer.Close()

	searchWorker := worker.NewSearchWorker(
		flightCache,
		flightCache,
		searcher,
		history,
		progressChannel,
		worker.Config{
			TTL:            cfg.FlightCache.TTL,
			FetchRateLimit: cfg.Worker.FetchRateLimit,
			FetchRateBurst: cfg.Worker.FetchRateBurst,
		},
		m,
		log,
	)

	processor := worker.NewFlightProcessor(
		consumer,
		searchWorker,
		worker.ProcessorConfig{
			MaxWorkers:      cfg.Worker.MaxWorkers,
			MetricsInterval: cfg.Worker.MetricsInterval,
		},
		m,
		log,
	)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Worker.MetricsPort).Msg("Serving worker metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Worker error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown failed")
	}
	log.Info().Msg("Flight search worker stopped")
}
