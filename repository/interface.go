package repository

import (
	"context"
	"errors"

	"github.com/wanderwise/wanderwise/model"
)

// ErrNoHistory is returned by the price statistics when a route has no stored flights.
var ErrNoHistory = errors.New("no flight history for route")

// FlightRepository keeps every fetched offer for historical price statistics
type FlightRepository interface {
	SaveFlights(ctx context.Context, flights []model.Flight) error
	// AveragePrice is rounded to cents.
	AveragePrice(ctx context.Context, origin, destination string) (float64, error)
	LowestPrice(ctx context.Context, origin, destination string) (float64, error)

	// Health check
	Ping(ctx context.Context) error
}
