package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wanderwise/wanderwise/model"
)

const channelPrefix = "progress:"

// subscriberBuffer bounds how far a slow SSE client may lag before events are dropped.
const subscriberBuffer = 100

type ProgressChannel struct {
	client *redis.Client
	now    func() time.Time
}

func NewProgressChannel(client *redis.Client) *ProgressChannel {
	return &ProgressChannel{client: client, now: time.Now}
}

func progressChannel(requestID string) string {
	return channelPrefix + requestID
}

func (p *ProgressChannel) Publish(ctx context.Context, requestID string, stage model.ProgressStage, message string) error {
	event := model.ProgressEvent{
		RequestID: requestID,
		Stage:     stage,
		Message:   message,
		Timestamp: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	if err := p.client.Publish(ctx, progressChannel(requestID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

func (p *ProgressChannel) Subscribe(ctx context.Context, requestID string) (<-chan model.ProgressEvent, func(), error) {
	pubsub := p.client.Subscribe(ctx, progressChannel(requestID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to progress channel: %w", err)
	}

	events := make(chan model.ProgressEvent, subscriberBuffer)
	done := make(chan struct{})

	go processMessages(ctx, pubsub.Channel(), events, done)

	stop := func() {
		select {
		case <-done:
		default:
			close(done)
			pubsub.Close()
		}
	}
	return events, stop, nil
}

// processMessages forwards decoded events in order, skipping any that do not fit the buffer.
func processMessages(ctx context.Context, ch <-chan *redis.Message, events chan<- model.ProgressEvent, done <-chan struct{}) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event model.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}

			select {
			case events <- event:
			default:
				// Channel full, skip message
			}
		}
	}
}
