package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// PolicyRepository stores limit policies in the limit_policies table.
// It implements limits.PolicyLoader.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// LoadPolicies returns every stored policy keyed by category.
func (r *PolicyRepository) LoadPolicies(ctx context.Context) (map[domain.Category]domain.LimitPolicy, error) {
	query := `
		SELECT category, daily::text, weekly::text, monthly::text, per_transaction::text
		FROM limit_policies
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query limit policies: %w", err)
	}
	defer rows.Close()

	policies := make(map[domain.Category]domain.LimitPolicy)
	for rows.Next() {
		var category, daily, weekly, monthly, perTx string
		if err := rows.Scan(&category, &daily, &weekly, &monthly, &perTx); err != nil {
			return nil, fmt.Errorf("failed to scan limit policy: %w", err)
		}

		var p domain.LimitPolicy
		if p.Daily, err = parseNumeric(daily); err != nil {
			return nil, err
		}
		if p.Weekly, err = parseNumeric(weekly); err != nil {
			return nil, err
		}
		if p.Monthly, err = parseNumeric(monthly); err != nil {
			return nil, err
		}
		if p.PerTransaction, err = parseNumeric(perTx); err != nil {
			return nil, err
		}
		policies[domain.Category(category)] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate limit policies: %w", err)
	}
	return policies, nil
}

// UpsertPolicy stores the policy of a category, replacing any previous one.
func (r *PolicyRepository) UpsertPolicy(ctx context.Context, category domain.Category, p domain.LimitPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO limit_policies (category, daily, weekly, monthly, per_transaction, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, NOW())
		ON CONFLICT (category) DO UPDATE SET
			daily = EXCLUDED.daily,
			weekly = EXCLUDED.weekly,
			monthly = EXCLUDED.monthly,
			per_transaction = EXCLUDED.per_transaction,
			updated_at = NOW()
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		string(category),
		p.Daily.String(),
		p.Weekly.String(),
		p.Monthly.String(),
		p.PerTransaction.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert limit policy: %w", err)
	}
	return nil
}
