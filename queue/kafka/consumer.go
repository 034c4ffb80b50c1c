package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/queue"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type JobConsumer struct {
	reader        messageReader
	writer        messageWriter
	offsets       *offsetTracker
	commitMu      sync.Mutex
	jobTopic      string
	deadLetter    string
	maxDeliveries int
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

func NewJobConsumer(cfg config.Kafka, m *metrics.Metrics, log zerolog.Logger) *JobConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.JobTopic,
		GroupID: cfg.ConsumerGroup,
	})
	return newJobConsumer(reader, newWriter(cfg.Brokers), cfg, m, log)
}

func newJobConsumer(reader messageReader, writer messageWriter, cfg config.Kafka, m *metrics.Metrics, log zerolog.Logger) *JobConsumer {
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries < 1 {
		maxDeliveries = 1
	}

	return &JobConsumer{
		reader:        reader,
		writer:        writer,
		offsets:       newOffsetTracker(),
		jobTopic:      cfg.JobTopic,
		deadLetter:    cfg.DeadLetterTopic,
		maxDeliveries: maxDeliveries,
		metrics:       m,
		log:           log,
	}
}

// Consume fetches the next job without committing it. Undecodable messages are
// dead-lettered and skipped. Offsets are committed in fetch order per partition,
// whatever order deliveries are settled in.
func (c *JobConsumer) Consume(ctx context.Context) (*queue.Delivery, error) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, queue.ErrClosed
			}
			return nil, fmt.Errorf("failed to fetch message: %w", err)
		}
		c.offsets.track(msg)

		var job model.FlightJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("Dropping undecodable flight job")
			if err := c.deadLetterMessage(ctx, msg, err); err != nil {
				return nil, err
			}
			if err := c.commit(ctx, msg); err != nil {
				return nil, err
			}
			continue
		}

		return &queue.Delivery{
			Job:     job,
			Attempt: attemptFromHeaders(msg.Headers),
			Handle:  msg,
		}, nil
	}
}

func (c *JobConsumer) Ack(ctx context.Context, d *queue.Delivery) error {
	msg, err := messageOf(d)
	if err != nil {
		return err
	}
	return c.commit(ctx, msg)
}

// Redrive re-publishes the job with the next attempt number, or sends it to the
// dead-letter topic once maxDeliveries is reached, then commits the original.
func (c *JobConsumer) Redrive(ctx context.Context, d *queue.Delivery, cause error) error {
	msg, err := messageOf(d)
	if err != nil {
		return err
	}

	if !exhausted(d.Attempt, c.maxDeliveries) {
		retry := kafka.Message{
			Topic:   c.jobTopic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: setHeader(msg.Headers, headerAttempt, strconv.Itoa(d.Attempt+1)),
		}
		if err := c.writer.WriteMessages(ctx, retry); err != nil {
			return fmt.Errorf("failed to re-publish flight job: %w", err)
		}
		c.metrics.QueueRedrives.WithLabelValues("retry").Inc()
		c.log.Warn().
			Str(logger.FieldRequestID, d.Job.RequestID).
			Int(logger.FieldAttempt, d.Attempt+1).
			Err(cause).
			Msg("Flight job scheduled for retry")
	} else {
		if err := c.deadLetterMessage(ctx, msg, cause); err != nil {
			return err
		}
		c.log.Error().
			Str(logger.FieldRequestID, d.Job.RequestID).
			Int(logger.FieldAttempt, d.Attempt).
			Err(cause).
			Msg("Flight job moved to dead-letter topic")
	}

	return c.commit(ctx, msg)
}

// commit settles msg and commits the partition's settled prefix, if it grew.
func (c *JobConsumer) commit(ctx context.Context, msg kafka.Message) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	upTo, ok := c.offsets.settle(msg)
	if !ok {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, upTo); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

func (c *JobConsumer) deadLetterMessage(ctx context.Context, msg kafka.Message, cause error) error {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	dlq := kafka.Message{
		Topic:   c.deadLetter,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: setHeader(msg.Headers, headerError, reason),
	}
	if err := c.writer.WriteMessages(ctx, dlq); err != nil {
		return fmt.Errorf("failed to write dead-letter message: %w", err)
	}
	c.metrics.QueueRedrives.WithLabelValues("dead_letter").Inc()
	return nil
}

func (c *JobConsumer) Close() error {
	if n := c.offsets.inFlight(); n > 0 {
		c.log.Warn().Int("uncommitted", n).Msg("Closing with uncommitted jobs, they will be redelivered")
	}
	werr := c.writer.Close()
	if err := c.reader.Close(); err != nil {
		return err
	}
	return werr
}

// exhausted reports whether a delivery that just failed has used its last attempt.
func exhausted(attempt, maxDeliveries int) bool {
	return attempt >= maxDeliveries
}

func messageOf(d *queue.Delivery) (kafka.Message, error) {
	msg, ok := d.Handle.(kafka.Message)
	if !ok {
		return kafka.Message{}, fmt.Errorf("delivery for request %s was not produced by this consumer", d.Job.RequestID)
	}
	return msg, nil
}
