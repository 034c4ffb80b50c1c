package cache

import (
	"context"
	"time"

	"github.com/wanderwise/wanderwise/model"
)

// FlightCache stores flight search results keyed by request fingerprint.
type FlightCache interface {
	// GetFlights returns (nil, false, nil) when the key is absent or expired.
	GetFlights(ctx context.Context, key string) ([]model.Flight, bool, error)
	SetFlights(ctx context.Context, key string, flights []model.Flight, ttl time.Duration) error
	FlightsExist(ctx context.Context, key string) (bool, error)

	// Health check
	Ping(ctx context.Context) error
}

// ReadyNotifier lets the worker wake up callers waiting on a key.
type ReadyNotifier interface {
	NotifyReady(ctx context.Context, signal model.ReadySignal) error
	// WatchReady is subscribed once it returns, so a signal published afterwards is not lost.
	// The returned func releases the subscription.
	WatchReady(ctx context.Context, key string) (<-chan model.ReadySignal, func(), error)
}
