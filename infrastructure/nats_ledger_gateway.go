package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moneywave/models"

	log "github.com/sirupsen/logrus"
)

// LedgerTransport is the subset of NATSClient the ledger gateway needs
type LedgerTransport interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

type balanceRequest struct {
	UserID   string          `json:"user_id"`
	Currency models.Currency `json:"currency"`
}

type inactiveBalanceRequest struct {
	Currency           models.Currency `json:"currency"`
	InactiveForSeconds int64           `json:"inactive_for_seconds"`
}

type balanceReply struct {
	Balance int64  `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// LedgerEventEnvelope is the wire form of every event published to the ledger stream
type LedgerEventEnvelope struct {
	EventID       string           `json:"event_id"`
	EventType     string           `json:"event_type"`
	SourceService string           `json:"source_service"`
	Timestamp     time.Time        `json:"timestamp"`
	Event         models.GameEvent `json:"event"`
}

// NATSLedgerGateway talks to the balance ledger over NATS. Events go through JetStream
// keyed by event id; balance lookups use request/reply.
type NATSLedgerGateway struct {
	transport LedgerTransport
	subjects  *LedgerSubjectMapper
	timeout   time.Duration
}

// NewNATSLedgerGateway creates a gateway. A non-positive timeout defaults to five seconds.
func NewNATSLedgerGateway(transport LedgerTransport, subjects *LedgerSubjectMapper, timeout time.Duration) *NATSLedgerGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSLedgerGateway{
		transport: transport,
		subjects:  subjects,
		timeout:   timeout,
	}
}

// GetBalance asks the ledger for a user's balance in currency
func (g *NATSLedgerGateway) GetBalance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	reply, err := g.request(ctx, g.subjects.BalanceSubject(), balanceRequest{UserID: userID, Currency: currency})
	if err != nil {
		return 0, fmt.Errorf("failed to get %s balance for user %s: %w", currency, userID, err)
	}
	return reply.Balance, nil
}

// InactiveBalanceTotal asks the ledger for the sum of balances idle for at least inactiveFor
func (g *NATSLedgerGateway) InactiveBalanceTotal(ctx context.Context, currency models.Currency, inactiveFor time.Duration) (int64, error) {
	reply, err := g.request(ctx, g.subjects.InactiveBalanceSubject(), inactiveBalanceRequest{
		Currency:           currency,
		InactiveForSeconds: int64(inactiveFor / time.Second),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get inactive %s balance total: %w", currency, err)
	}
	return reply.Balance, nil
}

// EmitEvent publishes event to its ledger subject. Redelivery of the same event id is
// dropped by the stream's duplicate window.
func (g *NATSLedgerGateway) EmitEvent(ctx context.Context, event models.GameEvent) error {
	envelope := LedgerEventEnvelope{
		EventID:       event.ID,
		EventType:     string(event.Type),
		SourceService: "moneywave",
		Timestamp:     event.OccurredAt,
		Event:         event,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	subject := g.subjects.EventSubject(event.Type)
	if err := g.transport.Publish(ctx, subject, data, event.ID); err != nil {
		return fmt.Errorf("failed to emit %s event %s: %w", event.Type, event.ID, err)
	}

	log.WithFields(log.Fields{
		"eventID":   event.ID,
		"eventType": event.Type,
		"gameID":    event.GameID,
		"subject":   subject,
	}).Debug("Emitted ledger event")
	return nil
}

func (g *NATSLedgerGateway) request(ctx context.Context, subject string, payload any) (*balanceReply, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.transport.Request(ctx, subject, data)
	if err != nil {
		return nil, err
	}

	var reply balanceReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode ledger reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("ledger error: %s", reply.Error)
	}
	return &reply, nil
}
