package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	defaultQueueCapacity = 64
	defaultPollInterval  = 500 * time.Millisecond
)

// DeliveryQueue buffers narration text on the speech side and drains it
// at the pace of one send per poll cycle.
//
// Pause rule: nothing survives a pause. Text offered while paused is
// discarded (silence, not backlog, so playback never bursts to catch up),
// and an item already pulled from the queue when a pause lands is dropped
// for the same reason.
type DeliveryQueue struct {
	items  chan string
	paused atomic.Bool
	poll   time.Duration
	logger *slog.Logger
}

// NewDeliveryQueue creates a queue with the default capacity.
func NewDeliveryQueue(pollInterval time.Duration, logger *slog.Logger) *DeliveryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &DeliveryQueue{
		items:  make(chan string, defaultQueueCapacity),
		poll:   pollInterval,
		logger: logger,
	}
}

// Inject offers narration text for delivery. Returns false when the text
// was discarded (paused, empty, or queue full).
func (q *DeliveryQueue) Inject(text string) bool {
	if text == "" {
		return false
	}
	if q.paused.Load() {
		q.logger.Debug("narration discarded while paused", "text", head(text, 50))
		return false
	}
	select {
	case q.items <- text:
		q.logger.Debug("narration queued", "text", head(text, 50))
		return true
	default:
		q.logger.Warn("delivery queue full, dropping narration", "text", head(text, 50))
		return false
	}
}

// Pause suppresses narration delivery until Resume.
func (q *DeliveryQueue) Pause() {
	q.paused.Store(true)
	q.logger.Info("narration paused")
}

// Resume re-enables narration delivery.
func (q *DeliveryQueue) Resume() {
	q.paused.Store(false)
	q.logger.Info("narration resumed")
}

// Paused reports whether delivery is currently suppressed.
func (q *DeliveryQueue) Paused() bool {
	return q.paused.Load()
}

// Pending reports the number of queued items awaiting delivery.
func (q *DeliveryQueue) Pending() int {
	return len(q.items)
}

// Run drains the queue, invoking send once per poll cycle, until the
// context is canceled. Cancellation is polled: an idle cycle wakes within
// one poll interval. Items pulled while paused are dropped, never
// re-queued.
func (q *DeliveryQueue) Run(ctx context.Context, send func(text string) bool) {
	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.poll)

		select {
		case <-ctx.Done():
			q.logger.Info("delivery loop stopped")
			return
		case text := <-q.items:
			if q.paused.Load() {
				q.logger.Debug("narration dropped by pause while in flight", "text", head(text, 50))
				continue
			}
			if !send(text) {
				q.logger.Warn("narration delivery failed", "text", head(text, 50))
			}
		case <-timer.C:
			// idle cycle, loop to observe cancellation
		}
	}
}
