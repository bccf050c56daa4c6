package ws

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
)

const notifierBatch = 100

type EventSource interface {
	ListSince(ctx context.Context, lastID int64, limit int32) ([]trust.Event, error)
}

// Notifier tails the trust event ledger and fans new rows out to the
// subscribers of each user's trust channel.
type Notifier struct {
	events       EventSource
	hub          *Hub
	pollInterval time.Duration
	logger       *slog.Logger
	lastID       int64
}

func NewNotifier(events EventSource, hub *Hub, pollInterval time.Duration, logger *slog.Logger) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{events: events, hub: hub, pollInterval: pollInterval, logger: logger}
}

// StartAfter skips ledger rows up to and including id.
func (n *Notifier) StartAfter(id int64) {
	n.lastID = id
}

func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				n.logger.Warn("trust event poll failed", "err", err, "last_id", n.lastID)
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	for {
		events, err := n.events.ListSince(ctx, n.lastID, notifierBatch)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.ID > n.lastID {
				n.lastID = ev.ID
			}
			if _, err := n.hub.PublishTrustEvent(ev); err != nil {
				n.logger.Warn("trust event publish failed", "err", err, "event_id", ev.ID)
			}
		}
		if len(events) < notifierBatch {
			return nil
		}
	}
}

func UserTrustChannel(userID string) string {
	return "user:trust:" + userID
}
