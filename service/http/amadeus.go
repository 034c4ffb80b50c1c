package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const amadeusProvider = "amadeus"

const amadeusTimeLayout = "2006-01-02T15:04:05"

// AmadeusFlightSearcher queries the Amadeus flight offers API. Access tokens are
// fetched and refreshed by the oauth2 client credentials flow.
type AmadeusFlightSearcher struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewAmadeusFlightSearcher(cfg *config.Amadeus, m *metrics.Metrics) *AmadeusFlightSearcher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	credentials := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// The token source keeps this context for refreshes.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	httpClient := credentials.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	return &AmadeusFlightSearcher{
		baseURL:    baseURL,
		maxResults: cfg.MaxResults,
		httpClient: httpClient,
		metrics:    m,
	}
}

type amadeusOffersResponse struct {
	Data []amadeusOffer `json:"data"`
}

type amadeusOffer struct {
	ID          string `json:"id"`
	Itineraries []struct {
		Duration string `json:"duration"`
		Segments []struct {
			Departure   amadeusEndpoint `json:"departure"`
			Arrival     amadeusEndpoint `json:"arrival"`
			CarrierCode string          `json:"carrierCode"`
		} `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		Total string `json:"total"`
	} `json:"price"`
	ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
}

type amadeusEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

// FindFlights returns one-way offers for the request. No offers is an empty slice.
func (s *AmadeusFlightSearcher) FindFlights(ctx context.Context, req model.SearchRequest) ([]model.Flight, error) {
	start := time.Now()
	flights, err := s.findFlights(ctx, req)
	s.metrics.ProviderRequestDuration.WithLabelValues(amadeusProvider).Observe(time.Since(start).Seconds())
	s.metrics.ProviderRequestsTotal.WithLabelValues(amadeusProvider, providerStatus(err)).Inc()
	return flights, err
}

func (s *AmadeusFlightSearcher) findFlights(ctx context.Context, req model.SearchRequest) ([]model.Flight, error) {
	params := url.Values{}
	params.Set("originLocationCode", req.OriginCode)
	params.Set("destinationLocationCode", req.DestinationCode)
	params.Set("departureDate", req.DepartureDate)
	params.Set("adults", strconv.Itoa(req.PassengerCount))
	if s.maxResults > 0 {
		params.Set("max", strconv.Itoa(s.maxResults))
	}

	endpoint := fmt.Sprintf("%s/v2/shopping/flight-offers?%s", s.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("amadeus error (status %d): %s", resp.StatusCode, string(body))
	}

	var offers amadeusOffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	flights := make([]model.Flight, 0, len(offers.Data))
	for _, offer := range offers.Data {
		flight, err := offer.toFlight(req)
		if err != nil {
			return nil, fmt.Errorf("invalid offer %s: %w", offer.ID, err)
		}
		flights = append(flights, flight)
	}
	return flights, nil
}

func (o amadeusOffer) toFlight(req model.SearchRequest) (model.Flight, error) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return model.Flight{}, fmt.Errorf("offer has no segments")
	}
	itinerary := o.Itineraries[0]
	first := itinerary.Segments[0]
	last := itinerary.Segments[len(itinerary.Segments)-1]

	price, err := strconv.ParseFloat(o.Price.Total, 64)
	if err != nil {
		return model.Flight{}, fmt.Errorf("invalid price %q: %w", o.Price.Total, err)
	}

	airline := first.CarrierCode
	if len(o.ValidatingAirlineCodes) > 0 {
		airline = o.ValidatingAirlineCodes[0]
	}

	departure, err := clockTime(first.Departure.At)
	if err != nil {
		return model.Flight{}, err
	}
	arrival, err := clockTime(last.Arrival.At)
	if err != nil {
		return model.Flight{}, err
	}

	return model.Flight{
		ID:                      o.ID,
		OriginLocationCode:      req.OriginCode,
		DestinationLocationCode: req.DestinationCode,
		DepartureDate:           req.DepartureDate,
		Price:                   price,
		Airline:                 airline,
		Duration:                itinerary.Duration,
		DepartureTime:           departure,
		ArrivalTime:             arrival,
	}, nil
}

func clockTime(at string) (string, error) {
	t, err := time.Parse(amadeusTimeLayout, at)
	if err != nil {
		return "", fmt.Errorf("invalid segment time %q: %w", at, err)
	}
	return t.Format("15:04"), nil
}

func providerStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
