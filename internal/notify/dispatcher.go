package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/emilythestrangee/post-voting/backend/internal/logging"
)

// Dispatcher decouples voters from delivery: Enqueue never blocks and Run
// publishes on its own goroutine.
type Dispatcher struct {
	queue      chan PostVoted
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
}

func NewDispatcher(buffer int, logger *slog.Logger, publishers ...Publisher) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		queue:      make(chan PostVoted, buffer),
		publishers: publishers,
		timeout:    5 * time.Second,
		logger:     logging.Resolve(logger),
	}
}

// Enqueue schedules an event. It reports false when the queue is full and
// the event was dropped.
func (d *Dispatcher) Enqueue(event PostVoted) bool {
	if event.EventID == "" {
		event.EventID = newEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("notification dropped",
			"event", "notify_enqueue_dropped",
			"module", "notify",
			"layer", "dispatcher",
			"event_id", event.EventID,
			"votable_id", event.VotableID,
		)
		return false
	}
}

// Run publishes queued events until ctx is cancelled. Whatever is still
// buffered at that point is flushed with a fresh short deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher started",
		"event", "notify_dispatcher_started",
		"module", "notify",
		"layer", "dispatcher",
		"publishers", len(d.publishers),
	)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event PostVoted) {
	for _, p := range d.publishers {
		pctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := p.Publish(pctx, event)
		cancel()
		if err != nil {
			d.logger.Error("notification publish failed",
				"event", "notify_publish_failed",
				"module", "notify",
				"layer", "dispatcher",
				"event_id", event.EventID,
				"votable_id", event.VotableID,
				"error", err.Error(),
			)
		}
	}
}
