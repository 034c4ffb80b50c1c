package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type partitionKey struct {
	topic     string
	partition int
}

type partitionOffsets struct {
	pending []kafka.Message // fetch order
	settled map[int64]bool
}

// offsetTracker orders commits per partition. Committing offset N tells the group
// that everything before N is done, so with several jobs of one partition in
// flight only the contiguous settled prefix may be committed.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := partitionKey{msg.Topic, msg.Partition}
	p, ok := t.partitions[key]
	if !ok {
		p = &partitionOffsets{settled: make(map[int64]bool)}
		t.partitions[key] = p
	}
	p.pending = append(p.pending, msg)
}

// settle marks msg done. It returns the highest message whose commit is now safe,
// or false while an earlier message of the partition is still in flight.
func (t *offsetTracker) settle(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partitionKey{msg.Topic, msg.Partition}]
	if !ok {
		return msg, true
	}
	p.settled[msg.Offset] = true

	var last kafka.Message
	found := false
	for len(p.pending) > 0 && p.settled[p.pending[0].Offset] {
		last = p.pending[0]
		delete(p.settled, last.Offset)
		p.pending = p.pending[1:]
		found = true
	}
	return last, found
}

// inFlight returns the number of fetched messages not yet covered by a commit.
func (t *offsetTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, p := range t.partitions {
		n += len(p.pending)
	}
	return n
}
