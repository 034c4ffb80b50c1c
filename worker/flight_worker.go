package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderwise/wanderwise/cache"
	"github.com/wanderwise/wanderwise/fingerprint"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/progress"
	"github.com/wanderwise/wanderwise/repository"
	"github.com/wanderwise/wanderwise/service"
	"golang.org/x/time/rate"
)

type Outcome int

const (
	AlreadyCached Outcome = iota
	Stored
	Empty
	FetchFailed
	StoreFailed
)

func (o Outcome) String() string {
	switch o {
	case AlreadyCached:
		return "already_cached"
	case Stored:
		return "stored"
	case Empty:
		return "empty"
	case FetchFailed:
		return "fetch_failed"
	case StoreFailed:
		return "store_failed"
	default:
		return "unknown"
	}
}

// FlightWorker handles one job. A non-nil error means the job should be redriven.
type FlightWorker interface {
	Process(ctx context.Context, job model.FlightJob) (Outcome, error)
}

type Config struct {
	TTL            time.Duration
	FetchRateLimit float64
	FetchRateBurst int
}

type SearchWorker struct {
	cache    cache.FlightCache
	ready    cache.ReadyNotifier
	searcher service.FlightSearcher
	history  repository.FlightRepository
	progress progress.Publisher
	limiter  *rate.Limiter
	ttl      time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewSearchWorker builds the job handler. history may be nil when statistics are not kept.
func NewSearchWorker(
	flightCache cache.FlightCache,
	ready cache.ReadyNotifier,
	searcher service.FlightSearcher,
	history repository.FlightRepository,
	publisher progress.Publisher,
	cfg Config,
	m *metrics.Metrics,
	log zerolog.Logger,
) *SearchWorker {
	limit := rate.Inf
	if cfg.FetchRateLimit > 0 {
		limit = rate.Limit(cfg.FetchRateLimit)
	}
	burst := cfg.FetchRateBurst
	if burst < 1 {
		burst = 1
	}

	return &SearchWorker{
		cache:    flightCache,
		ready:    ready,
		searcher: searcher,
		history:  history,
		progress: publisher,
		limiter:  rate.NewLimiter(limit, burst),
		ttl:      cfg.TTL,
		metrics:  m,
		log:      log,
	}
}

// Process fetches the flights for job unless they are already cached, stores them
// and reports each step on the job's progress channel.
func (w *SearchWorker) Process(ctx context.Context, job model.FlightJob) (Outcome, error) {
	outcome, err := w.process(ctx, job)
	w.metrics.WorkerJobsTotal.WithLabelValues(outcome.String()).Inc()
	return outcome, err
}

func (w *SearchWorker) process(ctx context.Context, job model.FlightJob) (Outcome, error) {
	req := job.SearchRequest().Normalized()
	key := fingerprint.Flights(req)

	log := logger.ForRequest(w.log, req.RequestID).With().
		Str(logger.FieldCacheKey, key).
		Str(logger.FieldOrigin, req.OriginCode).
		Str(logger.FieldDestination, req.DestinationCode).
		Logger()
	ctx = logger.WithLogger(ctx, log)

	w.report(ctx, req.RequestID, model.StageReceived,
		fmt.Sprintf("Searching flights %s to %s on %s", req.OriginCode, req.DestinationCode, req.DepartureDate))

	exists, err := w.cache.FlightsExist(ctx, key)
	if err != nil {
		w.report(ctx, req.RequestID, model.StageError, "Flight cache unavailable")
		return StoreFailed, fmt.Errorf("failed to check cache: %w", err)
	}
	if exists {
		log.Info().Msg("Flights already cached, skipping fetch")
		w.notify(ctx, model.ReadySignal{Key: key, Status: model.ReadyStored})
		w.report(ctx, req.RequestID, model.StageAlreadyCached, "Flights already cached")
		return AlreadyCached, nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return FetchFailed, fmt.Errorf("failed waiting for fetch slot: %w", err)
	}

	w.report(ctx, req.RequestID, model.StageFetching, "Fetching flights from provider")
	flights, err := w.searcher.FindFlights(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("Flight fetch failed")
		w.notify(ctx, model.ReadySignal{Key: key, Status: model.ReadyFailed, Reason: err.Error()})
		w.report(ctx, req.RequestID, model.StageError, "Failed to fetch flights")
		return FetchFailed, fmt.Errorf("failed to fetch flights: %w", err)
	}

	if len(flights) == 0 {
		log.Info().Msg("Provider returned no flights")
		w.notify(ctx, model.ReadySignal{Key: key, Status: model.ReadyEmpty})
		w.report(ctx, req.RequestID, model.StageNoResults, "No flights found")
		return Empty, nil
	}

	if w.history != nil {
		if err := w.history.SaveFlights(ctx, flights); err != nil {
			// Statistics only; the cached result stays authoritative.
			log.Warn().Err(err).Msg("Failed to save flight history")
		}
	}

	if err := w.cache.SetFlights(ctx, key, flights, w.ttl); err != nil {
		w.report(ctx, req.RequestID, model.StageError, "Failed to store flights")
		return StoreFailed, fmt.Errorf("failed to store flights: %w", err)
	}

	w.notify(ctx, model.ReadySignal{Key: key, Status: model.ReadyStored})
	w.report(ctx, req.RequestID, model.StageStored, fmt.Sprintf("Stored %d flights", len(flights)))
	log.Info().Int("flights", len(flights)).Msg("Flights stored")
	return Stored, nil
}

// report publishes a progress event. Failures are logged and otherwise ignored.
func (w *SearchWorker) report(ctx context.Context, requestID string, stage model.ProgressStage, message string) {
	if err := w.progress.Publish(ctx, requestID, stage, message); err != nil {
		l := logger.Ctx(ctx)
		l.Warn().Err(err).Str("stage", string(stage)).Msg("Failed to publish progress")
	}
}

func (w *SearchWorker) notify(ctx context.Context, signal model.ReadySignal) {
	if w.ready == nil {
		return
	}
	if err := w.ready.NotifyReady(ctx, signal); err != nil {
		l := logger.Ctx(ctx)
		l.Warn().Err(err).Str("status", string(signal.Status)).Msg("Failed to publish ready signal")
	}
}
