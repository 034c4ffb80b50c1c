package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderwise/wanderwise/metrics"
	"github.com/wanderwise/wanderwise/model"
)

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string][]model.Flight
	getErr   error
	getCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]model.Flight)}
}

func (c *fakeCache) GetFlights(ctx context.Context, key string) ([]model.Flight, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	flights, ok := c.entries[key]
	return flights, ok, nil
}

func (c *fakeCache) SetFlights(ctx context.Context, key string, flights []model.Flight, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = flights
	return nil
}

func (c *fakeCache) FlightsExist(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok, nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }

func (c *fakeCache) gets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls
}

func (c *fakeCache) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr = err
}

type fakePublisher struct {
	mu        sync.Mutex
	jobs      []model.FlightJob
	err       error
	onPublish func(job model.FlightJob)
}

func (p *fakePublisher) Publish(ctx context.Context, job model.FlightJob) error {
	p.mu.Lock()
	p.jobs = append(p.jobs, job)
	err, hook := p.err, p.onPublish
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(job)
	}
	return nil
}

func (p *fakePublisher) published() []model.FlightJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.FlightJob(nil), p.jobs...)
}

// fakeReady delivers signals sent through send to every watcher of the key.
type fakeReady struct {
	mu       sync.Mutex
	watchers map[string][]chan model.ReadySignal
	watchErr error
}

func newFakeReady() *fakeReady {
	return &fakeReady{watchers: make(map[string][]chan model.ReadySignal)}
}

func (r *fakeReady) NotifyReady(ctx context.Context, signal model.ReadySignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.watchers[signal.Key] {
		select {
		case ch <- signal:
		default:
		}
	}
	return nil
}

func (r *fakeReady) WatchReady(ctx context.Context, key string) (<-chan model.ReadySignal, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchErr != nil {
		return nil, nil, r.watchErr
	}
	ch := make(chan model.ReadySignal, 4)
	r.watchers[key] = append(r.watchers[key], ch)
	return ch, func() {}, nil
}

func newTestOrchestrator(c *fakeCache, ready *fakeReady, pub *fakePublisher, cfg Config) *CacheAsideOrchestrator {
	o := NewCacheAsideOrchestrator(c, nil, pub, cfg, metrics.New("test"), zerolog.Nop())
	if ready != nil {
		o.ready = ready
	}
	return o
}

var tpeLax = model.SearchRequest{
	RequestID:       "req-tpe-lax",
	OriginCode:      "TPE",
	DestinationCode: "LAX",
	DepartureDate:   "2025-05-01",
	PassengerCount:  1,
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
