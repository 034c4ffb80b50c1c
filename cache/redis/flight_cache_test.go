package redis

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wanderwise/wanderwise/model"
)

const tpeLaxKey = "flights:TPE:LAX:2025-05-01:1"

var threeFlights = []model.Flight{
	{ID: "1", OriginLocationCode: "TPE", DestinationLocationCode: "LAX", DepartureDate: "2025-05-01", Price: 612.40, Airline: "BR", Duration: "PT11H50M", DepartureTime: "23:40", ArrivalTime: "19:30"},
	{ID: "2", OriginLocationCode: "TPE", DestinationLocationCode: "LAX", DepartureDate: "2025-05-01", Price: 655.10, Airline: "CI", Duration: "PT11H35M", DepartureTime: "16:10", ArrivalTime: "11:45"},
	{ID: "3", OriginLocationCode: "TPE", DestinationLocationCode: "LAX", DepartureDate: "2025-05-01", Price: 702.00, Airline: "UA", Duration: "PT12H05M", DepartureTime: "09:20", ArrivalTime: "05:25"},
}

func newTestCache(t *testing.T) (*RedisFlightCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { client.Close() })
	return NewRedisFlightCache(client), mr
}

func TestGetFlightsMiss(t *testing.T) {
	c, _ := newTestCache(t)

	flights, ok, err := c.GetFlights(context.Background(), tpeLaxKey)
	if err != nil || ok || flights != nil {
		t.Fatalf("GetFlights() = %v, %v, %v; want a clean miss", flights, ok, err)
	}
}

func TestSetFlightsRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetFlights(ctx, tpeLaxKey, threeFlights, time.Hour); err != nil {
		t.Fatalf("SetFlights() error = %v", err)
	}
	if ttl := mr.TTL(tpeLaxKey); ttl != time.Hour {
		t.Fatalf("ttl = %s, want 1h", ttl)
	}

	got, ok, err := c.GetFlights(ctx, tpeLaxKey)
	if err != nil || !ok {
		t.Fatalf("GetFlights() = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got, threeFlights) {
		t.Fatalf("flights = %+v, want %+v", got, threeFlights)
	}
	if exists, err := c.FlightsExist(ctx, tpeLaxKey); err != nil || !exists {
		t.Fatalf("FlightsExist() = %v, %v; want true", exists, err)
	}

	mr.FastForward(time.Hour + time.Second)

	if _, ok, _ := c.GetFlights(ctx, tpeLaxKey); ok {
		t.Fatal("entry still readable after its ttl")
	}
	if exists, _ := c.FlightsExist(ctx, tpeLaxKey); exists {
		t.Fatal("entry still exists after its ttl")
	}
}

func TestSetFlightsEmptyIsAHit(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetFlights(ctx, tpeLaxKey, nil, time.Minute); err != nil {
		t.Fatalf("SetFlights() error = %v", err)
	}
	if raw, _ := mr.Get(tpeLaxKey); raw != "[]" {
		t.Fatalf("stored %q, want []", raw)
	}
	got, ok, err := c.GetFlights(ctx, tpeLaxKey)
	if err != nil || !ok || got == nil || len(got) != 0 {
		t.Fatalf("GetFlights() = %v, %v, %v; want an empty hit", got, ok, err)
	}
}

func TestGetFlightsCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Set(tpeLaxKey, "{not json")

	if _, ok, err := c.GetFlights(context.Background(), tpeLaxKey); err == nil || ok {
		t.Fatalf("GetFlights() = %v, %v; want decode error", ok, err)
	}
}

func TestCacheUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	ctx := context.Background()

	if _, _, err := c.GetFlights(ctx, tpeLaxKey); err == nil {
		t.Fatal("GetFlights() succeeded against a stopped server")
	}
	if _, err := c.FlightsExist(ctx, tpeLaxKey); err == nil {
		t.Fatal("FlightsExist() succeeded against a stopped server")
	}
	if err := c.Ping(ctx); err == nil {
		t.Fatal("Ping() succeeded against a stopped server")
	}
}

func TestWatchReadyReceivesSignalsForItsKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	signals, stop, err := c.WatchReady(ctx, tpeLaxKey)
	if err != nil {
		t.Fatalf("WatchReady() error = %v", err)
	}
	defer stop()

	// The subscription is confirmed when WatchReady returns, so nothing published
	// afterwards can be missed.
	if err := c.NotifyReady(ctx, model.ReadySignal{Key: "flights:TPE:NRT:2025-05-01:1", Status: model.ReadyStored}); err != nil {
		t.Fatalf("NotifyReady() error = %v", err)
	}
	if err := c.NotifyReady(ctx, model.ReadySignal{Key: tpeLaxKey, Status: model.ReadyFailed, Reason: "boom"}); err != nil {
		t.Fatalf("NotifyReady() error = %v", err)
	}

	select {
	case got := <-signals:
		want := model.ReadySignal{Key: tpeLaxKey, Status: model.ReadyFailed, Reason: "boom"}
		if got != want {
			t.Fatalf("signal = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ready signal received")
	}
}

func TestWatchReadyStopClosesChannel(t *testing.T) {
	c, _ := newTestCache(t)

	signals, stop, err := c.WatchReady(context.Background(), tpeLaxKey)
	if err != nil {
		t.Fatalf("WatchReady() error = %v", err)
	}
	stop()
	stop()

	select {
	case _, ok := <-signals:
		if ok {
			t.Fatal("unexpected signal after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after stop")
	}
}
