package models

import (
	"time"
)

// GameSnapshot is the plain persisted form of a Game. Repositories store and load it verbatim.
type GameSnapshot struct {
	ID                 string             `json:"id"`
	CreatorID          string             `json:"creator_id"`
	Configuration      GameConfiguration  `json:"configuration"`
	Status             GameStatus         `json:"status"`
	AllocatedPrizePool int64              `json:"allocated_prize_pool"`
	Stakes             []Stake            `json:"stakes"`
	Receipt            *SettlementReceipt `json:"receipt,omitempty"`
	CancelReason       string             `json:"cancel_reason,omitempty"`
	PendingEvents      []GameEvent        `json:"pending_events,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	DeletedAt          *time.Time         `json:"deleted_at,omitempty"`
}

// Snapshot returns a deep copy of the aggregate state
func (g *Game) Snapshot() GameSnapshot {
	snap := GameSnapshot{
		ID:                 g.id,
		CreatorID:          g.creatorID,
		Configuration:      g.config.clone(),
		Status:             g.status,
		AllocatedPrizePool: g.allocatedPrizePool,
		Stakes:             g.Stakes(),
		Receipt:            g.Receipt(),
		CancelReason:       g.cancelReason,
		PendingEvents:      g.PendingEvents(),
		CreatedAt:          g.createdAt,
		UpdatedAt:          g.updatedAt,
	}
	if g.deletedAt != nil {
		deletedAt := *g.deletedAt
		snap.DeletedAt = &deletedAt
	}
	return snap
}

// Reconstitute rebuilds a Game from stored state. Creation validation is not re-run;
// the snapshot is trusted as written by Snapshot.
func Reconstitute(snap GameSnapshot) *Game {
	g := &Game{
		id:                 snap.ID,
		creatorID:          snap.CreatorID,
		config:             snap.Configuration.clone(),
		status:             snap.Status,
		allocatedPrizePool: snap.AllocatedPrizePool,
		stakes:             make([]*Stake, 0, len(snap.Stakes)),
		stakeIndex:         make(map[string]int, len(snap.Stakes)),
		userIndex:          make(map[string]string, len(snap.Stakes)),
		cancelReason:       snap.CancelReason,
		pending:            append([]GameEvent(nil), snap.PendingEvents...),
		createdAt:          snap.CreatedAt,
		updatedAt:          snap.UpdatedAt,
	}
	for _, stake := range snap.Stakes {
		g.stakeIndex[stake.ID] = len(g.stakes)
		g.userIndex[stake.UserID] = stake.ID
		g.stakes = append(g.stakes, &stake)
	}
	if snap.Receipt != nil {
		receipt := snap.Receipt.clone()
		g.receipt = &receipt
	}
	if snap.DeletedAt != nil {
		deletedAt := *snap.DeletedAt
		g.deletedAt = &deletedAt
	}
	return g
}
