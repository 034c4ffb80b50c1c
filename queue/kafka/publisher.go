package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/fingerprint"
	"github.com/wanderwise/wanderwise/model"
)

type JobPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewJobPublisher(cfg config.Kafka) *JobPublisher {
	return &JobPublisher{
		writer: newWriter(cfg.Brokers),
		topic:  cfg.JobTopic,
	}
}

// newWriter builds a writer without a fixed topic; every message names its own.
// Hashing on the cache key keeps retries of one search on one partition.
func newWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
}

// Publish writes the job to the job topic, keyed by its cache key.
func (p *JobPublisher) Publish(ctx context.Context, job model.FlightJob) error {
	msg, err := jobMessage(p.topic, job)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish flight job: %w", err)
	}
	return nil
}

func (p *JobPublisher) Close() error {
	return p.writer.Close()
}

func jobMessage(topic string, job model.FlightJob) (kafka.Message, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal flight job: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(fingerprint.FlightsForJob(job)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerAttempt, Value: []byte("1")},
			{Key: headerRequestID, Value: []byte(job.RequestID)},
		},
	}, nil
}
