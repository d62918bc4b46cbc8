// ABOUTME: In-memory fan-out of transcript snapshots to watchers
// ABOUTME: Non-blocking publish; slow watchers drop snapshots rather than stall the controller

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// snapshotBroadcaster delivers Transcript snapshots to every subscriber.
type snapshotBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Transcript // subID -> ch
	closed      bool
	logger      *slog.Logger
}

func newSnapshotBroadcaster(logger *slog.Logger) *snapshotBroadcaster {
	return &snapshotBroadcaster{
		subscribers: make(map[string]chan Transcript),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. The subscription is removed and its
// channel closed when ctx is cancelled.
func (b *snapshotBroadcaster) Subscribe(ctx context.Context) (<-chan Transcript, string) {
	subID := uuid.New().String()
	ch := make(chan Transcript, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends a snapshot to all subscribers without blocking.
func (b *snapshotBroadcaster) Publish(snap Transcript) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			b.logger.Debug("dropped snapshot for slow subscriber", "sub_id", id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *snapshotBroadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.subscribers[subID]
	if !exists {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (b *snapshotBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true
}
