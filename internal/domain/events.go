package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a transfer lifecycle event.
type EventType string

const (
	EventTransferCompleted EventType = "transfer.completed"
	EventTransferFailed    EventType = "transfer.failed"
)

// Money is an amount with its currency code.
type Money struct {
	Value        decimal.Decimal `json:"value"`
	CurrencyCode string          `json:"currencyCode"`
}

// Event is the payload published to the notification collaborator.
type Event struct {
	EventID              uuid.UUID      `json:"eventId"`
	EventType            EventType      `json:"eventType"`
	EventTimestamp       time.Time      `json:"eventTimestamp"`
	TransferID           *uuid.UUID     `json:"transferId,omitempty"`
	RequestID            string         `json:"requestId"`
	ActorID              uuid.UUID      `json:"actorId"`
	CounterpartyID       *uuid.UUID     `json:"counterpartyId,omitempty"`
	Kind                 TransferKind   `json:"kind"`
	Amount               Money          `json:"amount"`
	Reference            string         `json:"reference,omitempty"`
	Status               TransferStatus `json:"status"`
	ActorBalances        *Balances      `json:"actorBalances,omitempty"`
	CounterpartyBalances *Balances      `json:"counterpartyBalances,omitempty"`
	ErrorKind            ErrorKind      `json:"errorKind,omitempty"`
	Message              string         `json:"message,omitempty"`
}

// TransferCompletedEvent builds the event emitted after a transfer commits.
// It carries the new balances of both parties.
func TransferCompletedEvent(t *Transfer) Event {
	id := t.ID
	counterparty := t.CounterpartyID
	actorBalances := t.ActorBalances
	counterpartyBalances := t.CounterpartyBalances
	return Event{
		EventID:              uuid.New(),
		EventType:            EventTransferCompleted,
		EventTimestamp:       t.CompletedAt,
		TransferID:           &id,
		RequestID:            t.RequestID,
		ActorID:              t.ActorID,
		CounterpartyID:       &counterparty,
		Kind:                 t.Kind,
		Amount:               Money{Value: t.Amount, CurrencyCode: t.Currency},
		Reference:            t.Reference,
		Status:               TransferStatusCompleted,
		ActorBalances:        &actorBalances,
		CounterpartyBalances: &counterpartyBalances,
	}
}

// TransferFailedEvent builds the event emitted when a request fails after admission.
func TransferFailedEvent(req TransferRequest, currency string, err error, at time.Time) Event {
	return Event{
		EventID:        uuid.New(),
		EventType:      EventTransferFailed,
		EventTimestamp: at,
		RequestID:      req.RequestID,
		ActorID:        req.ActorID,
		Kind:           req.Kind,
		Amount:         Money{Value: req.Amount, CurrencyCode: currency},
		Status:         TransferStatusFailed,
		ErrorKind:      KindOf(err),
		Message:        PublicMessage(err),
	}
}

// PublicMessage returns a message safe to show to clients.
// Internal causes are hidden.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
