package observability

import (
	"context"

	"moneywave/events"
	"moneywave/models"
)

// EventMetricsCollector subscribes to dispatched game events and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes the collector to every event type
func (c *EventMetricsCollector) Register(bus *events.Bus) {
	bus.SubscribeAll(c.HandleEvent)
}

// HandleEvent updates metrics for a single dispatched event
func (c *EventMetricsCollector) HandleEvent(_ context.Context, event models.GameEvent) {
	EventsDispatched.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case models.EventTypeStakeAdmitted:
		StakesAdmitted.Inc()
		StakeVolume.Add(float64(event.Amount))
	case models.EventTypeRewardCredited:
		RewardsDistributed.Add(float64(event.Amount))
	case models.EventTypeGameSettled:
		GamesSettled.Inc()
		GameTransitions.WithLabelValues(string(models.GameStatusSettled)).Inc()
	case models.EventTypeGameStateChanged:
		GameTransitions.WithLabelValues(string(event.NewStatus)).Inc()
	}
}
