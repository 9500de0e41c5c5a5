package models

import (
	"fmt"
	"time"
)

// The Update* methods change a single term of a game that has not been activated yet.
// Each change is validated against the same rules as CreateGame.

func (g *Game) UpdateTitle(title string, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.Title = title })
}

func (g *Game) UpdateDescription(description string, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.Description = description })
}

func (g *Game) UpdateStartTime(start time.Time, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.StartTime = start })
}

func (g *Game) UpdateEndTime(end time.Time, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.EndTime = end })
}

func (g *Game) UpdateSettlementTime(settlement time.Time, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.SettlementTime = settlement })
}

func (g *Game) UpdateMinimumStake(minimum int64, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.MinimumStake = minimum })
}

func (g *Game) UpdateMaximumStake(maximum int64, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) { c.MaximumStake = maximum })
}

// UpdateMaxParticipants sets the participant cap; nil removes it
func (g *Game) UpdateMaxParticipants(limit *int, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) {
		if limit == nil {
			c.MaxParticipants = nil
			return
		}
		value := *limit
		c.MaxParticipants = &value
	})
}

// UpdateOptions replaces the whole option set
func (g *Game) UpdateOptions(options []GameOption, now time.Time) error {
	return g.updateConfig(now, func(c *GameConfiguration) {
		c.Options = append([]GameOption(nil), options...)
	})
}

// Amend applies several term changes at once and validates only the combined result
func (g *Game) Amend(now time.Time, apply func(*GameConfiguration)) error {
	return g.updateConfig(now, apply)
}

func (g *Game) updateConfig(now time.Time, apply func(*GameConfiguration)) error {
	if g.status != GameStatusCreated {
		return fmt.Errorf("%w: game %s terms are frozen once it leaves %s (status: %s)",
			ErrIllegalStateTransition, g.id, GameStatusCreated, g.status)
	}
	next := g.config.clone()
	apply(&next)
	next.normalize()
	if err := ValidateConfiguration(next); err != nil {
		return err
	}
	g.config = next
	g.updatedAt = normalizeTime(now)
	return nil
}
