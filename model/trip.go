package model

import "time"

// Article is a news item about the destination country.
type Article struct {
	Title         string `json:"title"`
	PublishedDate string `json:"published_date"`
	URL           string `json:"url"`
}

// MiscData carries the historical statistics and country shown next to the flights.
type MiscData struct {
	HistoricalAverageData *float64 `json:"historical_average_data,omitempty"`
	HistoricalLowestData  *float64 `json:"historical_lowest_data,omitempty"`
	CountryData           string   `json:"country_data"`
}

// TripPlan aggregates everything returned for one search.
type TripPlan struct {
	RequestID string    `json:"request_id"`
	Flights   []Flight  `json:"flights"`
	MiscData  MiscData  `json:"misc_data"`
	Articles  []Article `json:"articles"`
	Opinion   string    `json:"opinion,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// ============================================================================
// API DATA TRANSFER OBJECTS (External - JSON tags for HTTP)
// ============================================================================

// FlightSearchRequest is the API request body for flight searches and trip plans.
type FlightSearchRequest struct {
	OriginLocationCode      string `json:"origin_location_code" binding:"required"`
	DestinationLocationCode string `json:"destination_location_code" binding:"required"`
	DepartureDate           string `json:"departure_date" binding:"required"`
	Adults                  int    `json:"adults" binding:"required"`
}

// ToSearchRequest attaches the ingress request id and normalizes the fields.
func (r FlightSearchRequest) ToSearchRequest(requestID string) SearchRequest {
	return SearchRequest{
		RequestID:       requestID,
		OriginCode:      r.OriginLocationCode,
		DestinationCode: r.DestinationLocationCode,
		DepartureDate:   r.DepartureDate,
		PassengerCount:  r.Adults,
	}.Normalized()
}

// FlightListResponse is returned when flights are available.
type FlightListResponse struct {
	RequestID string   `json:"request_id"`
	CacheHit  bool     `json:"cache_hit"`
	Flights   []Flight `json:"flights"`
}

// ProcessingResponse is returned when the worker has not finished within the wait budget.
type ProcessingResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	StreamURL string `json:"stream_url"`
}

// StatusResponse is the API banner.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
