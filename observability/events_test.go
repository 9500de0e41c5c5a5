package observability

import (
	"context"
	"testing"

	"moneywave/models"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestEventMetricsCollector(t *testing.T) {
	collector := NewEventMetricsCollector()
	ctx := context.Background()

	t.Run("stake admitted", func(t *testing.T) {
		admittedBefore := counterValue(t, StakesAdmitted)
		volumeBefore := counterValue(t, StakeVolume)

		collector.HandleEvent(ctx, models.GameEvent{Type: models.EventTypeStakeAdmitted, Amount: 250})

		assert.Equal(t, admittedBefore+1, counterValue(t, StakesAdmitted))
		assert.Equal(t, volumeBefore+250, counterValue(t, StakeVolume))
	})

	t.Run("reward credited", func(t *testing.T) {
		before := counterValue(t, RewardsDistributed)

		collector.HandleEvent(ctx, models.GameEvent{Type: models.EventTypeRewardCredited, Amount: 540})

		assert.Equal(t, before+540, counterValue(t, RewardsDistributed))
	})

	t.Run("state change labelled by target status", func(t *testing.T) {
		counter := GameTransitions.WithLabelValues(string(models.GameStatusEnded))
		before := counterValue(t, counter)

		collector.HandleEvent(ctx, models.GameEvent{
			Type:      models.EventTypeGameStateChanged,
			OldStatus: models.GameStatusActive,
			NewStatus: models.GameStatusEnded,
		})

		assert.Equal(t, before+1, counterValue(t, counter))
	})
}
