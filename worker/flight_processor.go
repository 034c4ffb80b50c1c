package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/queue"
)

const (
	shutdownTimeout = 30 * time.Second
	consumeBackoff  = time.Second
)

type ProcessorConfig struct {
	MaxWorkers      int
	MetricsInterval time.Duration
}

// FlightProcessor dispatches deliveries from the job queue to a fixed pool of workers.
type FlightProcessor struct {
	consumer queue.Consumer
	worker   FlightWorker
	cfg      ProcessorConfig
	metrics  *metrics.Metrics
	log      zerolog.Logger

	// Worker pool for managing goroutines
	workerPool chan chan *queue.Delivery
	workers    []*poolWorker

	// Metrics
	processedCount int64
	failedCount    int64
	activeWorkers  int64
}

type poolWorker struct {
	id         int
	processor  *FlightProcessor
	jobChannel chan *queue.Delivery
	workerPool chan chan *queue.Delivery
	quit       chan struct{}
}

func NewFlightProcessor(consumer queue.Consumer, worker FlightWorker, cfg ProcessorConfig, m *metrics.Metrics, log zerolog.Logger) *FlightProcessor {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 30 * time.Second
	}

	processor := &FlightProcessor{
		consumer:   consumer,
		worker:     worker,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		workerPool: make(chan chan *queue.Delivery, cfg.MaxWorkers),
		workers:    make([]*poolWorker, cfg.MaxWorkers),
	}

	for i := 0; i < cfg.MaxWorkers; i++ {
		processor.workers[i] = &poolWorker{
			id:         i,
			processor:  processor,
			jobChannel: make(chan *queue.Delivery),
			workerPool: processor.workerPool,
			quit:       make(chan struct{}),
		}
	}

	return processor
}

// Start consumes jobs until ctx is cancelled or the consumer is closed. Jobs in flight
// when ctx is cancelled run to completion, bounded by the shutdown timeout.
func (p *FlightProcessor) Start(ctx context.Context) error {
	p.log.Info().Int("workers", len(p.workers)).Msg("Starting flight processor")

	// In-flight jobs keep running after ctx is cancelled.
	jobCtx := context.WithoutCancel(ctx)
	for _, w := range p.workers {
		w.start(jobCtx)
	}

	go p.reportMetrics(ctx)

	for {
		d, err := p.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				p.shutdown()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			p.log.Error().Err(err).Msg("Error reading job")
			select {
			case <-time.After(consumeBackoff):
				continue
			case <-ctx.Done():
				continue
			}
		}

		// Dispatch to worker pool (blocks if all workers busy). An undispatched
		// delivery is never acked and will be delivered again.
		select {
		case jobChannel := <-p.workerPool:
			// Counted before the hand-off so shutdown cannot miss it.
			atomic.AddInt64(&p.activeWorkers, 1)
			jobChannel <- d
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		}
	}
}

func (w *poolWorker) start(ctx context.Context) {
	go func() {
		for {
			// Register this worker in the pool
			select {
			case w.workerPool <- w.jobChannel:
			case <-w.quit:
				return
			}

			select {
			case d := <-w.jobChannel:
				w.processor.metrics.WorkerActive.Inc()

				w.processor.handle(ctx, w.id, d)

				w.processor.metrics.WorkerActive.Dec()
				atomic.AddInt64(&w.processor.activeWorkers, -1)

			case <-w.quit:
				return
			}
		}
	}()
}

// handle runs the job and settles the delivery: Ack on success, Redrive on error.
func (p *FlightProcessor) handle(ctx context.Context, workerID int, d *queue.Delivery) {
	log := logger.ForRequest(p.log, d.Job.RequestID).With().
		Int(logger.FieldWorkerID, workerID).
		Int(logger.FieldAttempt, d.Attempt).
		Logger()

	outcome, err := p.worker.Process(ctx, d.Job)
	atomic.AddInt64(&p.processedCount, 1)

	if err != nil {
		atomic.AddInt64(&p.failedCount, 1)
		log.Error().Err(err).Str(logger.FieldOutcome, outcome.String()).Msg("Flight job failed")
		if rerr := p.consumer.Redrive(ctx, d, err); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to redrive flight job")
		}
		return
	}

	log.Info().Str(logger.FieldOutcome, outcome.String()).Msg("Flight job done")
	if aerr := p.consumer.Ack(ctx, d); aerr != nil {
		log.Error().Err(aerr).Msg("Failed to ack flight job")
	}
}

// shutdown gracefully stops all workers
func (p *FlightProcessor) shutdown() {
	p.log.Info().Msg("Shutting down flight processor workers...")

	for _, w := range p.workers {
		close(w.quit)
	}

	// Wait for active workers to finish (with timeout)
	timeout := time.After(shutdownTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if atomic.LoadInt64(&p.activeWorkers) == 0 {
			p.log.Info().Msg("All workers finished gracefully")
			return
		}
		select {
		case <-timeout:
			p.log.Warn().Int64("active", atomic.LoadInt64(&p.activeWorkers)).Msg("Shutdown timeout reached, forcing exit")
			return
		case <-ticker.C:
		}
	}
}

// reportMetrics logs throughput counters periodically
func (p *FlightProcessor) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.log.Info().
				Int64("processed", atomic.LoadInt64(&p.processedCount)).
				Int64("failed", atomic.LoadInt64(&p.failedCount)).
				Int64("active_workers", atomic.LoadInt64(&p.activeWorkers)).
				Msg("Flight processor metrics")
		}
	}
}
