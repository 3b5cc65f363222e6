package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// DirectoryRepository implements domain.Directory over the profiles table.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

const profileQuery = `
	SELECT p.account_id, p.email, p.phone, p.display_name, a.status
	FROM profiles p
	JOIN accounts a ON a.id = p.account_id
`

func (r *DirectoryRepository) FindByPhone(ctx context.Context, phone string) ([]domain.Profile, error) {
	return r.find(ctx, profileQuery+`WHERE p.phone = $1`, phone)
}

func (r *DirectoryRepository) FindByEmail(ctx context.Context, email string) ([]domain.Profile, error) {
	return r.find(ctx, profileQuery+`WHERE lower(p.email) = $1`, strings.ToLower(email))
}

// FindByDisplayName matches the whole name, ignoring case.
func (r *DirectoryRepository) FindByDisplayName(ctx context.Context, name string) ([]domain.Profile, error) {
	return r.find(ctx, profileQuery+`WHERE lower(p.display_name) = lower($1)`, name)
}

func (r *DirectoryRepository) find(ctx context.Context, query string, arg string) ([]domain.Profile, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var (
			p      domain.Profile
			status string
		)
		if err := rows.Scan(&p.AccountID, &p.Email, &p.Phone, &p.DisplayName, &status); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Status = domain.AccountStatus(status)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// CreateProfile inserts the profile of an existing account.
func (r *DirectoryRepository) CreateProfile(ctx context.Context, p domain.Profile) error {
	query := `
		INSERT INTO profiles (account_id, email, phone, display_name)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := conn(ctx, r.pool).Exec(ctx, query, p.AccountID, strings.ToLower(p.Email), p.Phone, p.DisplayName); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}
