package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// Balances are read as text so no precision is lost on the way to decimal.
const accountColumns = `id, wallet_balance::text, bank_balance::text, bank_linked, status, created_at, updated_at`

// LedgerRepository implements domain.Ledger using PostgreSQL.
// Writes outside a transaction open their own one.
type LedgerRepository struct {
	pool *pgxpool.Pool
	tm   *TransactionManager
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool, tm *TransactionManager) *LedgerRepository {
	return &LedgerRepository{
		pool: pool,
		tm:   tm,
	}
}

// Account retrieves an account by its ID.
func (r *LedgerRepository) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// Debit subtracts amount from one ledger of the account.
func (r *LedgerRepository) Debit(ctx context.Context, id uuid.UUID, ledger domain.LedgerKind, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.apply(ctx, id, ledger, amount, (*domain.Account).Debit)
}

// Credit adds amount to one ledger of the account.
func (r *LedgerRepository) Credit(ctx context.Context, id uuid.UUID, ledger domain.LedgerKind, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.apply(ctx, id, ledger, amount, (*domain.Account).Credit)
}

func (r *LedgerRepository) apply(
	ctx context.Context,
	id uuid.UUID,
	ledger domain.LedgerKind,
	amount decimal.Decimal,
	op func(*domain.Account, domain.LedgerKind, decimal.Decimal) error,
) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		acc, err := r.lock(txCtx, id)
		if err != nil {
			return err
		}
		if err := op(acc, ledger, amount); err != nil {
			return err
		}
		if err := r.update(txCtx, acc); err != nil {
			return err
		}
		balance = acc.Balance(ledger)
		return nil
	})
	return balance, err
}

// Move debits m.From and credits m.To in one transaction.
// Rows are locked with SELECT ... FOR UPDATE in ascending id order.
func (r *LedgerRepository) Move(ctx context.Context, m domain.Movement) (*domain.MoveResult, error) {
	var result *domain.MoveResult
	err := r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ids := []uuid.UUID{m.From}
		if m.To != m.From {
			ids = append(ids, m.To)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		locked := make(map[uuid.UUID]*domain.Account, len(ids))
		for _, id := range ids {
			acc, err := r.lock(txCtx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}

		from, to := locked[m.From], locked[m.To]
		if err := from.Debit(m.FromLedger, m.Amount); err != nil {
			return err
		}
		if err := to.Credit(m.ToLedger, m.Amount); err != nil {
			return err
		}

		for _, id := range ids {
			if err := r.update(txCtx, locked[id]); err != nil {
				return err
			}
		}

		fromOut, toOut := *from, *to
		result = &domain.MoveResult{From: &fromOut, To: &toOut}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lock reads the account row and holds its lock until the transaction ends.
func (r *LedgerRepository) lock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *LedgerRepository) update(ctx context.Context, acc *domain.Account) error {
	query := `
		UPDATE accounts
		SET wallet_balance = $2::numeric, bank_balance = $3::numeric, updated_at = $4
		WHERE id = $1
	`
	acc.UpdatedAt = time.Now().UTC()
	result, err := conn(ctx, r.pool).Exec(ctx, query,
		acc.ID,
		acc.WalletBalance.String(),
		acc.BankBalance.String(),
		acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// CreateAccount inserts a new account row.
func (r *LedgerRepository) CreateAccount(ctx context.Context, acc *domain.Account) error {
	query := `
		INSERT INTO accounts (id, wallet_balance, bank_balance, bank_linked, status, created_at, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		acc.ID,
		acc.WalletBalance.String(),
		acc.BankBalance.String(),
		acc.BankLinked,
		string(acc.Status),
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc          domain.Account
		wallet, bank string
		status       string
	)
	err := row.Scan(&acc.ID, &wallet, &bank, &acc.BankLinked, &status, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if acc.WalletBalance, err = parseNumeric(wallet); err != nil {
		return nil, err
	}
	if acc.BankBalance, err = parseNumeric(bank); err != nil {
		return nil, err
	}
	acc.Status = domain.AccountStatus(status)
	return &acc, nil
}

func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse numeric %q: %w", s, err)
	}
	return d, nil
}
