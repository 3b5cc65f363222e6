package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Repository appends and reads transfer history rows.
// It implements domain.HistoryWriter.
type Repository struct {
	db *ClickHouseClient
}

// NewRepository creates a new history repository.
func NewRepository(db *ClickHouseClient) *Repository {
	return &Repository{db: db}
}

// Append inserts records as one batch.
func (r *Repository) Append(ctx context.Context, records []domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO transfer_history (
			transfer_id, account_id, counterparty_id, kind, direction,
			amount, currency, reference, note, occurred_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history batch: %w", err)
	}
	defer batch.Abort() //nolint:errcheck

	for _, rec := range records {
		err := batch.Append(
			rec.TransferID,
			rec.AccountID,
			rec.CounterpartyID,
			string(rec.Kind),
			string(rec.Direction),
			rec.Amount,
			rec.Currency,
			rec.Reference,
			rec.Note,
			rec.OccurredAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to append history row of transfer %s: %w", rec.TransferID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send history batch: %w", err)
	}
	return nil
}

// List returns the most recent history rows of an account, newest first.
func (r *Repository) List(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT
			transfer_id, account_id, counterparty_id, kind, toString(direction),
			toString(amount) AS amount, currency, reference, note, occurred_at
		FROM transfer_history FINAL
		WHERE account_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec             domain.HistoryRecord
			kind, direction string
			amount          string
			occurredAt      time.Time
		)
		err := rows.Scan(
			&rec.TransferID,
			&rec.AccountID,
			&rec.CounterpartyID,
			&kind,
			&direction,
			&amount,
			&rec.Currency,
			&rec.Reference,
			&rec.Note,
			&occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse history amount %q: %w", amount, err)
		}
		rec.Kind = domain.TransferKind(kind)
		rec.Direction = domain.HistoryDirection(direction)
		rec.OccurredAt = occurredAt.UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return records, nil
}
