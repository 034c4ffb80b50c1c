package progress

import (
	"context"

	"github.com/wanderwise/wanderwise/model"
)

// Publisher emits best-effort status messages for one request id.
type Publisher interface {
	Publish(ctx context.Context, requestID string, stage model.ProgressStage, message string) error
}

// Subscriber streams the events published for a request id from the moment of subscribing.
// There is no replay. The returned func ends the subscription and closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, requestID string) (<-chan model.ProgressEvent, func(), error)
}
