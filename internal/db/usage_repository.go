package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// UsageRepository implements domain.UsageStore on the usage_buckets table.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Add accumulates amount into the bucket row.
func (r *UsageRepository) Add(ctx context.Context, accountID uuid.UUID, category domain.Category, bucket time.Time, amount decimal.Decimal) error {
	query := `
		INSERT INTO usage_buckets (account_id, category, bucket_start, amount)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (account_id, category, bucket_start)
		DO UPDATE SET amount = usage_buckets.amount + EXCLUDED.amount
	`
	if _, err := conn(ctx, r.pool).Exec(ctx, query, accountID, string(category), bucket.UTC(), amount.String()); err != nil {
		return fmt.Errorf("failed to add usage: %w", err)
	}
	return nil
}

// Windows sums the trailing day, week and month in one scan.
func (r *UsageRepository) Windows(ctx context.Context, accountID uuid.UUID, category domain.Category, now time.Time) (domain.WindowUsage, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE bucket_start >= $3), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE bucket_start >= $4), 0)::text,
			COALESCE(SUM(amount), 0)::text
		FROM usage_buckets
		WHERE account_id = $1 AND category = $2 AND bucket_start >= $5 AND bucket_start <= $6
	`
	now = now.UTC()
	var daily, weekly, monthly string
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		accountID,
		string(category),
		now.Add(-domain.DailyWindow),
		now.Add(-domain.WeeklyWindow),
		now.Add(-domain.MonthlyWindow),
		now,
	).Scan(&daily, &weekly, &monthly)
	if err != nil {
		return domain.WindowUsage{}, fmt.Errorf("failed to sum usage: %w", err)
	}

	var usage domain.WindowUsage
	if usage.Daily, err = parseNumeric(daily); err != nil {
		return domain.WindowUsage{}, err
	}
	if usage.Weekly, err = parseNumeric(weekly); err != nil {
		return domain.WindowUsage{}, err
	}
	if usage.Monthly, err = parseNumeric(monthly); err != nil {
		return domain.WindowUsage{}, err
	}
	return usage, nil
}

// Reset deletes the account's buckets from since onwards, in every category.
func (r *UsageRepository) Reset(ctx context.Context, accountID uuid.UUID, since time.Time) error {
	query := `DELETE FROM usage_buckets WHERE account_id = $1 AND bucket_start >= $2`
	if _, err := conn(ctx, r.pool).Exec(ctx, query, accountID, since.UTC()); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}
