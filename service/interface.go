package service

import (
	"context"
	"errors"

	"github.com/wanderwise/wanderwise/model"
)

var ErrUnknownAirport = errors.New("unknown airport code")

// FlightSearcher fetches live offers from the flight provider.
// An empty slice means the provider found nothing; it is not an error.
type FlightSearcher interface {
	FindFlights(ctx context.Context, req model.SearchRequest) ([]model.Flight, error)
}

// CountryLookup resolves an IATA airport code to its country name.
type CountryLookup interface {
	CountryForAirport(code string) (string, error)
}

// NewsSearcher returns recent articles matching keyword
type NewsSearcher interface {
	RecentArticles(ctx context.Context, keyword string) ([]model.Article, error)
}

type OpinionProvider interface {
	Opinion(ctx context.Context, prompt string) (string, error)
}
