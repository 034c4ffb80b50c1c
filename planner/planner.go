package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/orchestrator"
	"github.com/wanderwise/wanderwise/repository"
	"github.com/wanderwise/wanderwise/service"
	"golang.org/x/sync/errgroup"
)

var ErrCountryNotFound = errors.New("unable to find country for the destination location code")

type TripPlanner interface {
	Plan(ctx context.Context, req model.SearchRequest) (*model.TripPlan, error)
}

type Planner struct {
	flights   orchestrator.FlightOrchestrator
	countries service.CountryLookup
	news      service.NewsSearcher
	opinions  service.OpinionProvider
	history   repository.FlightRepository
	log       zerolog.Logger
}

func NewPlanner(
	flights orchestrator.FlightOrchestrator,
	countries service.CountryLookup,
	news service.NewsSearcher,
	opinions service.OpinionProvider,
	history repository.FlightRepository,
	log zerolog.Logger,
) *Planner {
	return &Planner{
		flights:   flights,
		countries: countries,
		news:      news,
		opinions:  opinions,
		history:   history,
		log:       log,
	}
}

// Plan gathers flights, destination country, price history, news and an opinion.
// Without flights or a country there is no plan; the remaining parts are best effort
// and their failures are listed in Warnings.
func (p *Planner) Plan(ctx context.Context, req model.SearchRequest) (*model.TripPlan, error) {
	log := logger.ForRequest(p.log, req.RequestID)

	outcome := p.flights.FindFlights(ctx, req)
	if !outcome.OK() {
		return nil, outcome.Err
	}

	country, err := p.countries.CountryForAirport(req.DestinationCode)
	if err != nil {
		log.Error().Err(err).Str(logger.FieldDestination, req.DestinationCode).Msg("Country not found")
		return nil, fmt.Errorf("%w: %w", ErrCountryNotFound, err)
	}

	plan := &model.TripPlan{
		RequestID: req.RequestID,
		Flights:   outcome.Flights,
		MiscData:  model.MiscData{CountryData: country},
		Articles:  []model.Article{},
	}

	var mu sync.Mutex
	warn := func(msg string, err error) {
		log.Warn().Err(err).Msg(msg)
		mu.Lock()
		plan.Warnings = append(plan.Warnings, msg)
		mu.Unlock()
	}

	// degrade turns a task failure into a warning. Only the caller's context ending
	// is fatal; it is returned so the group cancels the remaining tasks.
	degrade := func(msg string, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		warn(msg, err)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		avg, err := p.history.AveragePrice(gctx, req.OriginCode, req.DestinationCode)
		if err != nil {
			return degrade(historyWarning("average", err), err)
		}
		mu.Lock()
		plan.MiscData.HistoricalAverageData = &avg
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		lowest, err := p.history.LowestPrice(gctx, req.OriginCode, req.DestinationCode)
		if err != nil {
			return degrade(historyWarning("lowest", err), err)
		}
		mu.Lock()
		plan.MiscData.HistoricalLowestData = &lowest
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		articles, err := p.news.RecentArticles(gctx, country)
		if err != nil {
			return degrade("Unable to fetch recent articles", err)
		}
		if len(articles) == 0 {
			warn("No articles found for the destination country", nil)
			return nil
		}
		mu.Lock()
		plan.Articles = articles
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	average := averagePrice(plan.MiscData.HistoricalAverageData, plan.Flights)
	opinion, err := p.opinions.Opinion(ctx, opinionPrompt(req, country, average, plan.Articles))
	if err != nil {
		if err := degrade("Unable to generate an opinion", err); err != nil {
			return nil, err
		}
	} else {
		plan.Opinion = opinion
	}

	return plan, nil
}

func historyWarning(stat string, err error) string {
	if errors.Is(err, repository.ErrNoHistory) {
		return "No price history for this route yet"
	}
	return fmt.Sprintf("Unable to load historical %s price", stat)
}

// averagePrice prefers the historical average and falls back to the current offers.
func averagePrice(historical *float64, flights []model.Flight) float64 {
	if historical != nil {
		return *historical
	}
	if len(flights) == 0 {
		return 0
	}
	var sum float64
	for _, f := range flights {
		sum += f.Price
	}
	return math.Round(sum/float64(len(flights))*100) / 100
}

func opinionPrompt(req model.SearchRequest, country string, average float64, articles []model.Article) string {
	headlines := make([]string, 0, len(articles))
	for _, a := range articles {
		headlines = append(headlines, a.Title)
	}
	news := "none found"
	if len(headlines) > 0 {
		news = strings.Join(headlines, "; ")
	}

	return fmt.Sprintf(
		"What is your opinion on travelling to %s (%s) in month number %d? "+
			"Based on my findings, the average price for a flight from %s to %s is $%.2f. "+
			"Does the average price seem reasonable? Does it seem safe based on recent news articles: %s?",
		req.DestinationCode, country, req.Month(),
		req.OriginCode, req.DestinationCode, average,
		news,
	)
}
