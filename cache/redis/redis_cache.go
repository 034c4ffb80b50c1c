package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wanderwise/wanderwise/model"
)

const readyChannelPrefix = "flights:ready:"

type RedisFlightCache struct {
	client *redis.Client
}

func NewRedisFlightCache(client *redis.Client) *RedisFlightCache {
	return &RedisFlightCache{client: client}
}

func readyChannel(key string) string {
	return readyChannelPrefix + key
}

// GetFlights retrieves cached flights for a search key
func (r *RedisFlightCache) GetFlights(ctx context.Context, key string) ([]model.Flight, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	flights, err := decodeFlights(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return flights, true, nil
}

// SetFlights overwrites the entry for key; Redis expires it after ttl.
func (r *RedisFlightCache) SetFlights(ctx context.Context, key string, flights []model.Flight, ttl time.Duration) error {
	data, err := encodeFlights(flights)
	if err != nil {
		return fmt.Errorf("failed to encode flights: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (r *RedisFlightCache) FlightsExist(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache key %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping checks if Redis is healthy
func (r *RedisFlightCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisFlightCache) NotifyReady(ctx context.Context, signal model.ReadySignal) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal ready signal: %w", err)
	}
	return r.client.Publish(ctx, readyChannel(signal.Key), data).Err()
}

func (r *RedisFlightCache) WatchReady(ctx context.Context, key string) (<-chan model.ReadySignal, func(), error) {
	pubsub := r.client.Subscribe(ctx, readyChannel(key))

	// Wait for the subscription confirmation before the caller publishes the job.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to ready channel: %w", err)
	}

	signals := make(chan model.ReadySignal, 1)
	done := make(chan struct{})

	go func() {
		defer close(signals)
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var signal model.ReadySignal
				if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
					continue
				}
				select {
				case signals <- signal:
				default:
					// Reader has a pending signal already, it only needs one wake-up
				}
			}
		}
	}()

	stop := func() {
		select {
		case <-done:
		default:
			close(done)
			pubsub.Close()
		}
	}

	return signals, stop, nil
}

func encodeFlights(flights []model.Flight) ([]byte, error) {
	if flights == nil {
		flights = []model.Flight{}
	}
	return json.Marshal(flights)
}

func decodeFlights(data []byte) ([]model.Flight, error) {
	var flights []model.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	if flights == nil {
		flights = []model.Flight{}
	}
	return flights, nil
}
