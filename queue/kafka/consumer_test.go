package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/queue"
)

type fakeReader struct {
	mu      sync.Mutex
	queue   []kafka.Message
	commits []string
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, position(m))
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func position(m kafka.Message) string {
	return fmt.Sprintf("%d:%d", m.Partition, m.Offset)
}

func queued(t *testing.T, partition int, offset int64, requestID string) kafka.Message {
	t.Helper()
	msg, err := jobMessage("flight-search-jobs", model.FlightJob{
		RequestID:       requestID,
		OriginCode:      "TPE",
		DestinationCode: "LAX",
		DepartureDate:   "2025-05-01",
		PassengerCount:  1,
	})
	if err != nil {
		t.Fatalf("jobMessage() error = %v", err)
	}
	msg.Partition = partition
	msg.Offset = offset
	return msg
}

var testKafka = config.Kafka{
	JobTopic:        "flight-search-jobs",
	DeadLetterTopic: "flight-search-jobs-dlq",
	MaxDeliveries:   3,
}

func newTestConsumer(msgs ...kafka.Message) (*JobConsumer, *fakeReader, *fakeWriter) {
	r := &fakeReader{queue: msgs}
	w := &fakeWriter{}
	return newJobConsumer(r, w, testKafka, metrics.New("test"), zerolog.Nop()), r, w
}

func mustConsume(t *testing.T, c *JobConsumer) *queue.Delivery {
	t.Helper()
	d, err := c.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	return d
}

func TestCommitsFollowFetchOrderPerPartition(t *testing.T) {
	garbage := kafka.Message{Topic: "flight-search-jobs", Partition: 0, Offset: 12, Value: []byte("{")}
	c, r, w := newTestConsumer(
		queued(t, 0, 10, "slow"),
		queued(t, 0, 11, "fast"),
		queued(t, 1, 5, "other-partition"),
		garbage,
		queued(t, 0, 13, "last"),
	)
	ctx := context.Background()

	slow := mustConsume(t, c)
	fast := mustConsume(t, c)
	other := mustConsume(t, c)
	last := mustConsume(t, c) // skips and dead-letters offset 12

	if last.Job.RequestID != "last" {
		t.Fatalf("fourth delivery = %q, want the message after the undecodable one", last.Job.RequestID)
	}
	if len(r.commits) != 0 {
		t.Fatalf("commits = %v, offset 10 is still in flight", r.commits)
	}

	// A later job finishing first must not commit past the slow one.
	if err := c.Ack(ctx, fast); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if len(r.commits) != 0 {
		t.Fatalf("commits = %v after acking offset 11 with 10 in flight", r.commits)
	}

	if err := c.Ack(ctx, other); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if err := c.Redrive(ctx, slow, errors.New("provider timeout")); err != nil {
		t.Fatalf("Redrive() error = %v", err)
	}
	if err := c.Ack(ctx, last); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}

	if want := []string{"1:5", "0:12", "0:13"}; !slices.Equal(r.commits, want) {
		t.Fatalf("commits = %v, want %v", r.commits, want)
	}
	if n := c.offsets.inFlight(); n != 0 {
		t.Fatalf("in flight = %d, want 0", n)
	}

	if len(w.messages) != 2 {
		t.Fatalf("wrote %d messages, want dead letter + retry", len(w.messages))
	}
	if dlq := w.messages[0]; dlq.Topic != testKafka.DeadLetterTopic || string(dlq.Value) != "{" {
		t.Fatalf("dead letter = %+v", dlq)
	}
	if retry := w.messages[1]; retry.Topic != testKafka.JobTopic || attemptFromHeaders(retry.Headers) != 2 {
		t.Fatalf("retry = topic %q attempt %d", retry.Topic, attemptFromHeaders(retry.Headers))
	}
}

func TestRedriveDeadLettersAfterMaxDeliveries(t *testing.T) {
	msg := queued(t, 0, 7, "doomed")
	msg.Headers = setHeader(msg.Headers, headerAttempt, "3")
	c, r, w := newTestConsumer(msg)

	d := mustConsume(t, c)
	if d.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", d.Attempt)
	}
	if err := c.Redrive(context.Background(), d, errors.New("amadeus error (status 500)")); err != nil {
		t.Fatalf("Redrive() error = %v", err)
	}

	if len(w.messages) != 1 || w.messages[0].Topic != testKafka.DeadLetterTopic {
		t.Fatalf("writes = %+v, want one dead letter", w.messages)
	}
	var reason string
	for _, h := range w.messages[0].Headers {
		if h.Key == headerError {
			reason = string(h.Value)
		}
	}
	if reason != "amadeus error (status 500)" {
		t.Fatalf("x-error = %q", reason)
	}
	if want := []string{"0:7"}; !slices.Equal(r.commits, want) {
		t.Fatalf("commits = %v, want %v", r.commits, want)
	}
}

func TestConsumeReportsClosedReader(t *testing.T) {
	c, _, _ := newTestConsumer()
	if _, err := c.Consume(context.Background()); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("Consume() error = %v, want ErrClosed", err)
	}
}

func TestOffsetTrackerSettlesContiguousPrefix(t *testing.T) {
	tr := newOffsetTracker()
	msgs := make([]kafka.Message, 4)
	for i := range msgs {
		msgs[i] = kafka.Message{Topic: "jobs", Partition: 2, Offset: int64(20 + i)}
		tr.track(msgs[i])
	}

	steps := []struct {
		settle int
		want   int64 // -1 for no commit
	}{
		{2, -1},
		{1, -1},
		{0, 22},
		{3, 23},
	}
	for _, s := range steps {
		got, ok := tr.settle(msgs[s.settle])
		switch {
		case s.want < 0 && ok:
			t.Fatalf("settle(%d) committed %d, want nothing", msgs[s.settle].Offset, got.Offset)
		case s.want >= 0 && (!ok || got.Offset != s.want):
			t.Fatalf("settle(%d) = %d, %v; want %d", msgs[s.settle].Offset, got.Offset, ok, s.want)
		}
	}
}
