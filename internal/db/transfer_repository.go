package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// TransferRepository implements domain.TransferRepository using PostgreSQL.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{
		pool: pool,
	}
}

// Create persists a completed transfer.
// The (actor_id, request_id) unique constraint makes a second insert fail
// with domain.ErrDuplicateTransfer.
func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, request_id, actor_id, counterparty_id,
			kind, category, amount, currency, note, status, reference,
			actor_wallet, actor_bank, counterparty_wallet, counterparty_bank,
			created_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7::numeric, $8, $9, $10, $11,
			$12::numeric, $13::numeric, $14::numeric, $15::numeric,
			$16, $17
		)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		transfer.ID,
		transfer.RequestID,
		transfer.ActorID,
		transfer.CounterpartyID,
		string(transfer.Kind),
		string(transfer.Category),
		transfer.Amount.String(),
		transfer.Currency,
		transfer.Note,
		string(transfer.Status),
		transfer.Reference,
		transfer.ActorBalances.Wallet.String(),
		transfer.ActorBalances.Bank.String(),
		transfer.CounterpartyBalances.Wallet.String(),
		transfer.CounterpartyBalances.Bank.String(),
		transfer.CreatedAt,
		transfer.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transfer %q of actor %s: %w", transfer.RequestID, transfer.ActorID, domain.ErrDuplicateTransfer)
		}
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetByRequestID retrieves the transfer an actor recorded under requestID.
func (r *TransferRepository) GetByRequestID(ctx context.Context, actorID uuid.UUID, requestID string) (*domain.Transfer, error) {
	query := `
		SELECT
			id, request_id, actor_id, counterparty_id,
			kind, category, amount::text, currency, note, status, reference,
			actor_wallet::text, actor_bank::text, counterparty_wallet::text, counterparty_bank::text,
			created_at, completed_at
		FROM transfers
		WHERE actor_id = $1 AND request_id = $2
	`

	var (
		t                      domain.Transfer
		kind, category, status string
		amount                 string
		actorWallet, actorBank string
		cpWallet, cpBank       string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, query, actorID, requestID).Scan(
		&t.ID,
		&t.RequestID,
		&t.ActorID,
		&t.CounterpartyID,
		&kind,
		&category,
		&amount,
		&t.Currency,
		&t.Note,
		&status,
		&t.Reference,
		&actorWallet,
		&actorBank,
		&cpWallet,
		&cpBank,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	t.Kind = domain.TransferKind(kind)
	t.Category = domain.Category(category)
	t.Status = domain.TransferStatus(status)

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Amount, amount},
		{&t.ActorBalances.Wallet, actorWallet},
		{&t.ActorBalances.Bank, actorBank},
		{&t.CounterpartyBalances.Wallet, cpWallet},
		{&t.CounterpartyBalances.Bank, cpBank},
	} {
		if *f.dst, err = parseNumeric(f.src); err != nil {
			return nil, err
		}
	}

	t.CreatedAt = t.CreatedAt.UTC()
	t.CompletedAt = t.CompletedAt.UTC()
	return &t, nil
}
