package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/queue"
)

func TestAttemptFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers []kafka.Header
		want    int
	}{
		{"missing", nil, 1},
		{"present", []kafka.Header{{Key: headerAttempt, Value: []byte("3")}}, 3},
		{"garbage", []kafka.Header{{Key: headerAttempt, Value: []byte("x")}}, 1},
		{"zero", []kafka.Header{{Key: headerAttempt, Value: []byte("0")}}, 1},
		{"other headers", []kafka.Header{{Key: headerRequestID, Value: []byte("7")}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attemptFromHeaders(tt.headers); got != tt.want {
				t.Fatalf("attemptFromHeaders() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetHeaderReplacesExisting(t *testing.T) {
	headers := []kafka.Header{
		{Key: headerAttempt, Value: []byte("1")},
		{Key: headerRequestID, Value: []byte("req-1")},
	}

	got := setHeader(headers, headerAttempt, "2")

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if attemptFromHeaders(got) != 2 {
		t.Fatalf("attempt = %d, want 2", attemptFromHeaders(got))
	}
	if string(headers[0].Value) != "1" {
		t.Fatal("setHeader must not modify its input")
	}
}

func TestExhausted(t *testing.T) {
	if exhausted(1, 3) || exhausted(2, 3) {
		t.Fatal("attempts below the limit must be retried")
	}
	if !exhausted(3, 3) || !exhausted(4, 3) {
		t.Fatal("attempts at the limit must be dead-lettered")
	}
}

func TestJobMessage(t *testing.T) {
	job := model.FlightJob{
		RequestID:       "req-1",
		OriginCode:      "TPE",
		DestinationCode: "LAX",
		DepartureDate:   "2025-05-01",
		PassengerCount:  1,
		EnqueuedAt:      time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := jobMessage("flight-search-jobs", job)
	if err != nil {
		t.Fatalf("jobMessage() error = %v", err)
	}

	if msg.Topic != "flight-search-jobs" {
		t.Fatalf("topic = %q", msg.Topic)
	}
	if string(msg.Key) != "flights:TPE:LAX:2025-05-01:1" {
		t.Fatalf("key = %q", msg.Key)
	}
	if attemptFromHeaders(msg.Headers) != 1 {
		t.Fatalf("attempt = %d, want 1", attemptFromHeaders(msg.Headers))
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	for _, field := range []string{"requestId", "originCode", "destinationCode", "departureDate", "passengerCount", "enqueuedAt"} {
		if _, ok := payload[field]; !ok {
			t.Errorf("payload missing %q: %s", field, msg.Value)
		}
	}
}

func TestMessageOfRejectsForeignDelivery(t *testing.T) {
	if _, err := messageOf(&queue.Delivery{Handle: "not a kafka message"}); err == nil {
		t.Fatal("expected error for foreign delivery handle")
	}
	if _, err := messageOf(&queue.Delivery{Handle: kafka.Message{Offset: 4}}); err != nil {
		t.Fatalf("messageOf() error = %v", err)
	}
}
