// Package orchestrator implements the cache-aside lookup: serve flights from the cache,
// or enqueue a search job and wait, bounded, for a worker to fill the cache.
package orchestrator

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
	"github.com/wanderwise/wanderwise/queue"
	"golang.org/x/sync/singleflight"
)

type FlightOrchestrator interface {
	FindFlights(ctx context.Context, req model.SearchRequest) Outcome
}

type Config struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

type CacheAsideOrchestrator struct {
	cache     cache.FlightCache
	ready     cache.ReadyNotifier
	publisher queue.Publisher
	cfg       Config
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time

	// waits shares one publish and wait among concurrent lookups of the same key.
	waits singleflight.Group
}

// NewCacheAsideOrchestrator builds the orchestrator. ready may be nil, in which case
// the wait relies on polling alone.
func NewCacheAsideOrchestrator(
	flightCache cache.FlightCache,
	ready cache.ReadyNotifier,
	publisher queue.Publisher,
	cfg Config,
	m *metrics.Metrics,
	log zerolog.Logger,
) *CacheAsideOrchestrator {
	return &CacheAsideOrchestrator{
		cache:     flightCache,
		ready:     ready,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// FindFlights returns cached flights or waits for a worker to produce them.
// Cancelling ctx stops this caller's wait with a Cancelled outcome, without affecting
// other callers or the worker.
func (o *CacheAsideOrchestrator) FindFlights(ctx context.Context, req model.SearchRequest) Outcome {
	req = req.Normalized()
	key := fingerprint.Flights(req)

	log := logger.ForRequest(o.log, req.RequestID).With().Str(logger.FieldCacheKey, key).Logger()
	ctx = logger.WithLogger(ctx, log)

	outcome := o.findFlights(ctx, req, key)
	o.metrics.OrchestratorOutcomes.WithLabelValues(outcome.Kind.String()).Inc()

	event := log.Info()
	if !outcome.OK() {
		event = log.Warn().Err(outcome.Err)
	}
	event.Str(logger.FieldOutcome, outcome.Kind.String()).
		Bool("cache_hit", outcome.CacheHit).
		Int("flights", len(outcome.Flights)).
		Msg("Flight lookup finished")

	return outcome
}

func (o *CacheAsideOrchestrator) findFlights(ctx context.Context, req model.SearchRequest, key string) Outcome {
	flights, ok, err := o.cache.GetFlights(ctx, key)
	if err != nil {
		return failure(StoreFailure, fmt.Errorf("%w: %w", ErrStore, err))
	}
	if ok {
		o.metrics.CacheHitsTotal.Inc()
		return success(flights, true)
	}
	o.metrics.CacheMissesTotal.Inc()

	// Every caller waits at most MaxWait from its own arrival, even when it joins
	// a shared wait that started earlier.
	deadlineCtx, cancel := context.WithTimeout(ctx, o.cfg.MaxWait)
	defer cancel()

	// The shared wait must outlive the caller that started it.
	waitCtx := context.WithoutCancel(ctx)
	results := o.waits.DoChan(key, func() (any, error) {
		return o.publishAndWait(waitCtx, req, key), nil
	})

	select {
	case res := <-results:
		outcome := res.Val.(Outcome)
		if outcome.Kind != Timeout || deadlineCtx.Err() != nil {
			return outcome
		}
		// The shared wait ran out first; the job is queued, so watch for it until
		// this caller's own deadline.
		outcome = o.keepWaiting(deadlineCtx, key)
		if outcome.Kind == Timeout {
			return o.giveUp(ctx, key)
		}
		return outcome
	case <-deadlineCtx.Done():
		return o.giveUp(ctx, key)
	}
}

func (o *CacheAsideOrchestrator) keepWaiting(ctx context.Context, key string) Outcome {
	var signals <-chan model.ReadySignal
	if o.ready != nil {
		if ch, stop, err := o.ready.WatchReady(ctx, key); err == nil {
			signals = ch
			defer stop()
		}
	}
	return o.wait(ctx, key, signals)
}

// giveUp reports why a caller stopped waiting: its own context ended, or MaxWait passed.
func (o *CacheAsideOrchestrator) giveUp(ctx context.Context, key string) Outcome {
	if err := ctx.Err(); err != nil {
		return failure(Cancelled, fmt.Errorf("%w: %w", ErrCancelled, err))
	}
	return failure(Timeout, fmt.Errorf("%w: no result for %s after %s", ErrTimeout, key, o.cfg.MaxWait))
}

func (o *CacheAsideOrchestrator) publishAndWait(ctx context.Context, req model.SearchRequest, key string) Outcome {
	log := logger.Ctx(ctx)
	start := o.now()
	defer func() {
		o.metrics.OrchestratorWait.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxWait)
	defer cancel()

	// Subscribe before publishing so a fast worker cannot signal before we listen.
	var signals <-chan model.ReadySignal
	if o.ready != nil {
		ch, stop, err := o.ready.WatchReady(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("Ready channel unavailable, falling back to polling")
		} else {
			signals = ch
			defer stop()
		}
	}

	job := model.NewFlightJob(req, o.now().UTC())
	if err := o.publisher.Publish(ctx, job); err != nil {
		return failure(PublishFailure, fmt.Errorf("%w: %w", ErrPublish, err))
	}
	log.Debug().Msg("Flight search job published")

	return o.wait(ctx, key, signals)
}

// wait polls the cache on every tick and whenever a stored signal arrives, until
// the entry appears or ctx expires.
func (o *CacheAsideOrchestrator) wait(ctx context.Context, key string, signals <-chan model.ReadySignal) Outcome {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var fetchErr *model.ReadySignal

	for {
		select {
		case <-ctx.Done():
			if fetchErr != nil {
				return failure(FetchFailure, fmt.Errorf("%w: %s", ErrFetch, fetchErr.Reason))
			}
			return failure(Timeout, fmt.Errorf("%w: no result for %s after %s", ErrTimeout, key, o.cfg.MaxWait))

		case signal, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			switch signal.Status {
			case model.ReadyFailed:
				// A redelivered job may still succeed before the deadline.
				fetchErr = &signal
				continue
			case model.ReadyEmpty:
				continue
			}

		case <-ticker.C:
		}

		flights, ok, err := o.cache.GetFlights(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return failure(StoreFailure, fmt.Errorf("%w: %w", ErrStore, err))
		}
		if ok {
			return success(flights, false)
		}
	}
}
