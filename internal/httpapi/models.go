package httpapi

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// TransferRequest is the body of POST /api/v1/accounts/{accountId}/transfers.
// Amount accepts a JSON number or a decimal string.
type TransferRequest struct {
	Kind      string      `json:"kind" validate:"required"`
	Recipient string      `json:"recipient,omitempty"`
	Amount    json.Number `json:"amount" validate:"required"`
	Note      string      `json:"note,omitempty" validate:"max=280"`
}

// TransferResponse is returned by the transfer endpoint, on success and on failure.
type TransferResponse struct {
	Status   string        `json:"status"`
	Replayed bool          `json:"replayed,omitempty"`
	Transfer *TransferView `json:"transfer,omitempty"`
	Balances *BalancesView `json:"balances,omitempty"`
	Error    *ErrorView    `json:"error,omitempty"`
}

type TransferView struct {
	ID             uuid.UUID `json:"id"`
	RequestID      string    `json:"requestId"`
	Kind           string    `json:"kind"`
	Category       string    `json:"category"`
	ActorID        uuid.UUID `json:"actorId"`
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Note           string    `json:"note,omitempty"`
	Reference      string    `json:"reference"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedAt    time.Time `json:"completedAt"`
}

type BalancesView struct {
	Wallet string `json:"wallet"`
	Bank   string `json:"bank"`
}

// ErrorView is the error body shared by every endpoint.
type ErrorView struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	LimitKind string    `json:"limitKind,omitempty"`
}

type ErrorResponse struct {
	Status string     `json:"status"`
	Error  *ErrorView `json:"error"`
}

type AccountResponse struct {
	ID         uuid.UUID    `json:"id"`
	Status     string       `json:"status"`
	BankLinked bool         `json:"bankLinked"`
	Balances   BalancesView `json:"balances"`
	Currency   string       `json:"currency"`
}

type HistoryResponse struct {
	Content []HistoryView `json:"content"`
}

type HistoryView struct {
	TransferID     uuid.UUID `json:"transferId"`
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	Kind           string    `json:"kind"`
	Direction      string    `json:"direction"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Reference      string    `json:"reference"`
	Note           string    `json:"note,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func newTransferView(t *domain.Transfer, scale int32) *TransferView {
	return &TransferView{
		ID:             t.ID,
		RequestID:      t.RequestID,
		Kind:           string(t.Kind),
		Category:       string(t.Category),
		ActorID:        t.ActorID,
		CounterpartyID: t.CounterpartyID,
		Amount:         t.Amount.StringFixed(scale),
		Currency:       t.Currency,
		Note:           t.Note,
		Reference:      t.Reference,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

func newBalancesView(b domain.Balances, scale int32) BalancesView {
	return BalancesView{
		Wallet: b.Wallet.StringFixed(scale),
		Bank:   b.Bank.StringFixed(scale),
	}
}
