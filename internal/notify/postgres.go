package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/emilythestrangee/post-voting/backend/internal/logging"
)

// PGPublisher sends events through Postgres NOTIFY so that every API
// instance listening on the channel can push them to its own clients.
type PGPublisher struct {
	db      *gorm.DB
	channel string
}

func NewPGPublisher(db *gorm.DB, channel string) *PGPublisher {
	return &PGPublisher{db: db, channel: channel}
}

func (p *PGPublisher) Publish(ctx context.Context, event PostVoted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.EventID, err)
	}
	return p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", p.channel, string(payload)).Error
}

// PGRelay listens on a Postgres channel and forwards decoded events to a
// local publisher, normally the Hub.
type PGRelay struct {
	dsn     string
	channel string
	target  Publisher
	logger  *slog.Logger
}

func NewPGRelay(dsn, channel string, target Publisher, logger *slog.Logger) *PGRelay {
	return &PGRelay{
		dsn:     dsn,
		channel: channel,
		target:  target,
		logger:  logging.Resolve(logger),
	}
}

func (r *PGRelay) Run(ctx context.Context) error {
	listener := pq.NewListener(r.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warn("notification listener event",
				"event", "notify_listener_event",
				"module", "notify",
				"layer", "relay",
				"listener_event", int(ev),
				"error", err.Error(),
			)
		}
	})
	defer listener.Close()

	if err := listener.Listen(r.channel); err != nil {
		return fmt.Errorf("listen %s: %w", r.channel, err)
	}
	r.logger.Info("notification relay listening",
		"event", "notify_relay_started",
		"module", "notify",
		"layer", "relay",
		"channel", r.channel,
	)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			go listener.Ping()
		case n := <-listener.Notify:
			// nil after a reconnect; anything sent meanwhile is lost.
			if n == nil {
				continue
			}
			r.forward(ctx, n.Extra)
		}
	}
}

func (r *PGRelay) forward(ctx context.Context, payload string) {
	var event PostVoted
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Error("notification decode failed",
			"event", "notify_relay_decode_failed",
			"module", "notify",
			"layer", "relay",
			"error", err.Error(),
		)
		return
	}
	if err := r.target.Publish(ctx, event); err != nil {
		r.logger.Error("notification relay publish failed",
			"event", "notify_relay_publish_failed",
			"module", "notify",
			"layer", "relay",
			"event_id", event.EventID,
			"error", err.Error(),
		)
	}
}
