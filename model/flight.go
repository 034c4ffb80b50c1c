package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO date format used on the wire, in cache keys and in job payloads.
const DateLayout = "2006-01-02"

// MaxPassengers mirrors the provider limit on adults per search.
const MaxPassengers = 9

var ErrInvalidSearch = errors.New("invalid search request")

// ============================================================================
// CORE SEARCH TYPES
// ============================================================================

// SearchRequest is the semantic search plus the ingress request id used for correlation.
type SearchRequest struct {
	RequestID       string
	OriginCode      string
	DestinationCode string
	DepartureDate   string
	PassengerCount  int
}

// Normalized returns a copy with trimmed, upper-cased codes and a canonical date.
func (r SearchRequest) Normalized() SearchRequest {
	r.OriginCode = NormalizeAirportCode(r.OriginCode)
	r.DestinationCode = NormalizeAirportCode(r.DestinationCode)
	r.DepartureDate = NormalizeDate(r.DepartureDate)
	return r
}

// Validate checks a normalized request. today is compared at day granularity.
func (r SearchRequest) Validate(today time.Time) error {
	var problems []string

	if !isAirportCode(r.OriginCode) {
		problems = append(problems, "origin_location_code must be a 3-letter IATA code")
	}
	if !isAirportCode(r.DestinationCode) {
		problems = append(problems, "destination_location_code must be a 3-letter IATA code")
	}
	if r.OriginCode == r.DestinationCode && isAirportCode(r.OriginCode) {
		problems = append(problems, "origin and destination must differ")
	}

	date, err := time.Parse(DateLayout, r.DepartureDate)
	if err != nil {
		problems = append(problems, "departure_date must be an ISO date (YYYY-MM-DD)")
	} else {
		y, m, d := today.Date()
		if date.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			problems = append(problems, "departure_date must not be in the past")
		}
	}

	if r.PassengerCount < 1 || r.PassengerCount > MaxPassengers {
		problems = append(problems, fmt.Sprintf("adults must be between 1 and %d", MaxPassengers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSearch, strings.Join(problems, "; "))
	}
	return nil
}

// Month returns the departure month number, or 0 if the date does not parse.
func (r SearchRequest) Month() int {
	date, err := time.Parse(DateLayout, NormalizeDate(r.DepartureDate))
	if err != nil {
		return 0
	}
	return int(date.Month())
}

func NormalizeAirportCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeDate rewrites "2025-5-1" style input to "2025-05-01". Unparseable input is
// returned trimmed so validation can reject it.
func NormalizeDate(date string) string {
	date = strings.TrimSpace(date)
	for _, layout := range []string{DateLayout, "2006-1-2"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format(DateLayout)
		}
	}
	return date
}

func isAirportCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Flight is a single priced offer. The JSON form is the cache value format.
type Flight struct {
	ID                      string  `json:"id"`
	OriginLocationCode      string  `json:"origin_location_code"`
	DestinationLocationCode string  `json:"destination_location_code"`
	DepartureDate           string  `json:"departure_date"`
	Price                   float64 `json:"price"`
	Airline                 string  `json:"airline"`
	Duration                string  `json:"duration"`
	DepartureTime           string  `json:"departure_time"`
	ArrivalTime             string  `json:"arrival_time"`
}

// ============================================================================
// DATABASE ENTITIES (Internal - GORM only, no JSON tags)
// ============================================================================

// FlightRecord is one fetched offer kept for historical price statistics.
type FlightRecord struct {
	ID                      uint      `gorm:"primaryKey"`
	OfferID                 string    `gorm:"type:varchar(64)"`
	OriginLocationCode      string    `gorm:"type:varchar(3);not null;index:idx_flights_route"`
	DestinationLocationCode string    `gorm:"type:varchar(3);not null;index:idx_flights_route"`
	Price                   float64   `gorm:"type:decimal(10,2);not null"`
	Airline                 string    `gorm:"type:varchar(64);not null"`
	Duration                string    `gorm:"type:varchar(32);not null"`
	DepartureTime           string    `gorm:"type:varchar(16);not null"`
	ArrivalTime             string    `gorm:"type:varchar(16);not null"`
	DepartureDate           time.Time `gorm:"type:date;not null"`
	CreatedAt               time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the table name for GORM
func (FlightRecord) TableName() string {
	return "flights"
}

// NewFlightRecord converts a fetched flight into its history row.
func NewFlightRecord(f Flight) (FlightRecord, error) {
	date, err := time.Parse(DateLayout, f.DepartureDate)
	if err != nil {
		return FlightRecord{}, fmt.Errorf("invalid departure date %q: %w", f.DepartureDate, err)
	}
	return FlightRecord{
		OfferID:                 f.ID,
		OriginLocationCode:      f.OriginLocationCode,
		DestinationLocationCode: f.DestinationLocationCode,
		Price:                   f.Price,
		Airline:                 f.Airline,
		Duration:                f.Duration,
		DepartureTime:           f.DepartureTime,
		ArrivalTime:             f.ArrivalTime,
		DepartureDate:           date,
	}, nil
}

// ============================================================================
// KAFKA MESSAGE STRUCTURES
// ============================================================================

// FlightJob is the message placed on the job topic on a cache miss.
type FlightJob struct {
	RequestID       string    `json:"requestId"`
	OriginCode      string    `json:"originCode"`
	DestinationCode string    `json:"destinationCode"`
	DepartureDate   string    `json:"departureDate"`
	PassengerCount  int       `json:"passengerCount"`
	EnqueuedAt      time.Time `json:"enqueuedAt"`
}

func NewFlightJob(req SearchRequest, now time.Time) FlightJob {
	return FlightJob{
		RequestID:       req.RequestID,
		OriginCode:      req.OriginCode,
		DestinationCode: req.DestinationCode,
		DepartureDate:   req.DepartureDate,
		PassengerCount:  req.PassengerCount,
		EnqueuedAt:      now,
	}
}

func (j FlightJob) SearchRequest() SearchRequest {
	return SearchRequest{
		RequestID:       j.RequestID,
		OriginCode:      j.OriginCode,
		DestinationCode: j.DestinationCode,
		DepartureDate:   j.DepartureDate,
		PassengerCount:  j.PassengerCount,
	}
}

// ============================================================================
// PUB/SUB STRUCTURES
// ============================================================================

type ProgressStage string

const (
	StageReceived      ProgressStage = "received"
	StageFetching      ProgressStage = "fetching"
	StageAlreadyCached ProgressStage = "already_cached"
	StageStored        ProgressStage = "stored"
	StageNoResults     ProgressStage = "no_results"
	StageError         ProgressStage = "error"
)

// Terminal reports whether no further events follow for the job.
func (s ProgressStage) Terminal() bool {
	switch s {
	case StageAlreadyCached, StageStored, StageNoResults, StageError:
		return true
	}
	return false
}

// ProgressEvent is a best-effort status message for one request.
type ProgressEvent struct {
	RequestID string        `json:"request_id"`
	Stage     ProgressStage `json:"stage"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

type ReadyStatus string

const (
	ReadyStored ReadyStatus = "stored"
	ReadyEmpty  ReadyStatus = "empty"
	ReadyFailed ReadyStatus = "failed"
)

// ReadySignal tells waiters that the worker reached a terminal state for a cache key.
type ReadySignal struct {
	Key    string      `json:"key"`
	Status ReadyStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}
