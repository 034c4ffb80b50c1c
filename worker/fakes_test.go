package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/queue"
)

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string][]model.Flight
	ttls      map[string]time.Duration
	existsErr error
	setErr    error
	sets      int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]model.Flight), ttls: make(map[string]time.Duration)}
}

func (c *fakeCache) GetFlights(ctx context.Context, key string) ([]model.Flight, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flights, ok := c.entries[key]
	return flights, ok, nil
}

func (c *fakeCache) SetFlights(ctx context.Context, key string, flights []model.Flight, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.entries[key] = flights
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) FlightsExist(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.existsErr != nil {
		return false, c.existsErr
	}
	_, ok := c.entries[key]
	return ok, nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }

type fakeReady struct {
	mu      sync.Mutex
	signals []model.ReadySignal
}

func (r *fakeReady) NotifyReady(ctx context.Context, signal model.ReadySignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

func (r *fakeReady) WatchReady(ctx context.Context, key string) (<-chan model.ReadySignal, func(), error) {
	return nil, nil, errors.New("not implemented")
}

type fakeSearcher struct {
	mu      sync.Mutex
	flights []model.Flight
	err     error
	calls   int
}

func (s *fakeSearcher) FindFlights(ctx context.Context, req model.SearchRequest) ([]model.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.flights, s.err
}

type fakeHistory struct {
	saved []model.Flight
	err   error
}

func (h *fakeHistory) SaveFlights(ctx context.Context, flights []model.Flight) error {
	if h.err != nil {
		return h.err
	}
	h.saved = append(h.saved, flights...)
	return nil
}

func (h *fakeHistory) AveragePrice(ctx context.Context, origin, destination string) (float64, error) {
	return 0, nil
}

func (h *fakeHistory) LowestPrice(ctx context.Context, origin, destination string) (float64, error) {
	return 0, nil
}

func (h *fakeHistory) Ping(ctx context.Context) error { return nil }

type fakeProgress struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (p *fakeProgress) Publish(ctx context.Context, requestID string, stage model.ProgressStage, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, model.ProgressEvent{RequestID: requestID, Stage: stage, Message: message})
	return nil
}

func (p *fakeProgress) stages() []model.ProgressStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]model.ProgressStage, len(p.events))
	for i, e := range p.events {
		stages[i] = e.Stage
	}
	return stages
}

// fakeConsumer hands out the queued deliveries, then blocks until ctx is done.
type fakeConsumer struct {
	mu       sync.Mutex
	pending  []*queue.Delivery
	acked    []*queue.Delivery
	redriven []*queue.Delivery
	causes   []error
	settled  chan struct{}
}

func newFakeConsumer(deliveries ...*queue.Delivery) *fakeConsumer {
	return &fakeConsumer{pending: deliveries, settled: make(chan struct{}, len(deliveries))}
}

func (c *fakeConsumer) Consume(ctx context.Context) (*queue.Delivery, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		d := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeConsumer) Ack(ctx context.Context, d *queue.Delivery) error {
	c.mu.Lock()
	c.acked = append(c.acked, d)
	c.mu.Unlock()
	c.settled <- struct{}{}
	return nil
}

func (c *fakeConsumer) Redrive(ctx context.Context, d *queue.Delivery, cause error) error {
	c.mu.Lock()
	c.redriven = append(c.redriven, d)
	c.causes = append(c.causes, cause)
	c.mu.Unlock()
	c.settled <- struct{}{}
	return nil
}

func (c *fakeConsumer) Close() error { return nil }

var tpeLaxJob = model.FlightJob{
	RequestID:       "req-tpe-lax",
	OriginCode:      "TPE",
	DestinationCode: "LAX",
	DepartureDate:   "2025-05-01",
	PassengerCount:  1,
	EnqueuedAt:      time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
}

const tpeLaxKey = "flights:TPE:LAX:2025-05-01:1"

var tpeLaxFlights = []model.Flight{{
	ID:                      "1",
	OriginLocationCode:      "TPE",
	DestinationLocationCode: "LAX",
	DepartureDate:           "2025-05-01",
	Price:                   612.40,
	Airline:                 "BR",
	Duration:                "PT11H50M",
	DepartureTime:           "23:40",
	ArrivalTime:             "19:30",
}}
