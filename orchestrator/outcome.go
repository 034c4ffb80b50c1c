package orchestrator

import (
	"errors"

	"github.com/wanderwise/wanderwise/model"
)

var (
	ErrTimeout = errors.New("timed out waiting for flight results")
	ErrPublish = errors.New("failed to enqueue flight search")
	ErrStore   = errors.New("flight cache unavailable")
	ErrFetch   = errors.New("flight provider fetch failed")

	// ErrCancelled means the caller's context ended before a result was available.
	ErrCancelled = errors.New("caller stopped waiting for flight results")
)

type Kind int

const (
	Success Kind = iota
	Timeout
	PublishFailure
	FetchFailure
	StoreFailure
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case PublishFailure:
		return "publish_failure"
	case FetchFailure:
		return "fetch_failure"
	case StoreFailure:
		return "store_failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a lookup. Err is nil only for Success and wraps
// the sentinel matching Kind otherwise.
type Outcome struct {
	Kind     Kind
	Flights  []model.Flight
	CacheHit bool
	Err      error
}

func (o Outcome) OK() bool {
	return o.Kind == Success
}

func success(flights []model.Flight, hit bool) Outcome {
	return Outcome{Kind: Success, Flights: flights, CacheHit: hit}
}

func failure(kind Kind, err error) Outcome {
	return Outcome{Kind: kind, Err: err}
}
