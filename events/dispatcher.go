package events

import (
	"context"
	"fmt"

	"moneywave/models"

	log "github.com/sirupsen/logrus"
)

// Emitter delivers a single event to the ledger. Delivery is at-least-once;
// the event id is stable across retries.
type Emitter interface {
	EmitEvent(ctx context.Context, event models.GameEvent) error
}

// Dispatcher flushes a game's outbox: each pending event goes to the ledger first and,
// once accepted, to the in-process bus.
type Dispatcher struct {
	emitter Emitter
	bus     *Bus
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(emitter Emitter, bus *Bus) *Dispatcher {
	return &Dispatcher{emitter: emitter, bus: bus}
}

// Dispatch emits events in order and stops at the first failure. It returns the ids of
// the events the ledger accepted, which the caller marks dispatched even on error.
func (d *Dispatcher) Dispatch(ctx context.Context, pending []models.GameEvent) ([]string, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	log.WithFields(log.Fields{
		"gameID":       pending[0].GameID,
		"pendingCount": len(pending),
	}).Debug("Dispatching pending game events")

	dispatched := make([]string, 0, len(pending))
	for _, event := range pending {
		if err := d.emitter.EmitEvent(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"gameID":    event.GameID,
				"eventID":   event.ID,
				"eventType": event.Type,
				"remaining": len(pending) - len(dispatched),
				"error":     err,
			}).Warn("Failed to emit game event, leaving remainder pending")
			return dispatched, fmt.Errorf("failed to emit %s event %s: %w", event.Type, event.ID, err)
		}
		dispatched = append(dispatched, event.ID)
		if d.bus != nil {
			// Subscribers outlive the request that triggered the dispatch
			d.bus.Emit(context.Background(), event)
		}
	}
	return dispatched, nil
}
