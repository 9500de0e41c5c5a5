package infrastructure

import (
	"fmt"

	"moneywave/models"
)

// LedgerSubjectMapper maps game events and ledger queries to NATS subjects
type LedgerSubjectMapper struct {
	prefix string
}

// NewLedgerSubjectMapper creates a mapper rooted at prefix
func NewLedgerSubjectMapper(prefix string) *LedgerSubjectMapper {
	if prefix == "" {
		prefix = "moneywave"
	}
	return &LedgerSubjectMapper{prefix: prefix}
}

// EventSubject returns the JetStream subject for an event type
func (m *LedgerSubjectMapper) EventSubject(eventType models.GameEventType) string {
	switch eventType {
	case models.EventTypeStakeDebited:
		return m.prefix + ".events.ledger.stake_debited"
	case models.EventTypeRewardCredited:
		return m.prefix + ".events.ledger.reward_credited"
	case models.EventTypeStakeAdmitted:
		return m.prefix + ".events.game.stake_admitted"
	case models.EventTypeGameSettled:
		return m.prefix + ".events.game.settled"
	case models.EventTypeGameStateChanged:
		return m.prefix + ".events.game.state_changed"
	default:
		return fmt.Sprintf("%s.events.unknown.%s", m.prefix, eventType)
	}
}

// StreamSubjects returns the subjects the ledger stream must capture
func (m *LedgerSubjectMapper) StreamSubjects() []string {
	return []string{m.prefix + ".events.>"}
}

// BalanceSubject is the request subject for single-user balance lookups
func (m *LedgerSubjectMapper) BalanceSubject() string {
	return m.prefix + ".ledger.balance.get"
}

// InactiveBalanceSubject is the request subject for reclaimable balance totals
func (m *LedgerSubjectMapper) InactiveBalanceSubject() string {
	return m.prefix + ".ledger.balance.inactive_total"
}
