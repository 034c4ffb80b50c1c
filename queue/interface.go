package queue

import (
	"context"
	"errors"

	"github.com/wanderwise/wanderwise/model"
)

var ErrClosed = errors.New("queue closed")

// Delivery is one received job. Attempt starts at 1 for the first delivery.
type Delivery struct {
	Job     model.FlightJob
	Attempt int

	// Handle is owned by the Consumer that produced the delivery.
	Handle any
}

// Publisher enqueues flight search jobs.
type Publisher interface {
	Publish(ctx context.Context, job model.FlightJob) error
}

// Consumer hands out jobs with at-least-once semantics: a delivery is only
// considered done after Ack or Redrive.
type Consumer interface {
	// Consume blocks until a job is available or ctx is done.
	Consume(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Redrive schedules a failed delivery for another attempt, or dead-letters it once
	// the delivery limit is reached.
	Redrive(ctx context.Context, d *Delivery, cause error) error
	Close() error
}
