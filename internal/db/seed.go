package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// SeedAccount is an account together with its recipient profile.
type SeedAccount struct {
	Account *domain.Account
	Profile domain.Profile
}

// Seed bulk-loads accounts and profiles with COPY in a single transaction.
func Seed(ctx context.Context, p *Pool, accounts []SeedAccount) (int64, error) {
	tx, err := p.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	accountRows := make([][]any, 0, len(accounts))
	profileRows := make([][]any, 0, len(accounts))
	for _, s := range accounts {
		a := s.Account
		accountRows = append(accountRows, []any{
			a.ID, numeric(a.WalletBalance), numeric(a.BankBalance), a.BankLinked, string(a.Status), a.CreatedAt, a.UpdatedAt,
		})
		profileRows = append(profileRows, []any{
			a.ID, strings.ToLower(s.Profile.Email), s.Profile.Phone, s.Profile.DisplayName,
		})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"accounts"},
		[]string{"id", "wallet_balance", "bank_balance", "bank_linked", "status", "created_at", "updated_at"},
		pgx.CopyFromRows(accountRows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy accounts: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"profiles"},
		[]string{"account_id", "email", "phone", "display_name"},
		pgx.CopyFromRows(profileRows),
	); err != nil {
		return 0, fmt.Errorf("failed to copy profiles: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return n, nil
}

// numeric converts d for the binary COPY protocol.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
