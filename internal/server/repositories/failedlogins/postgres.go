package failedlogins

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, accountID string, at time.Time) error {
	query := `
		INSERT INTO failed_logins (account_id, failed_at)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, accountID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM failed_logins
		WHERE account_id = $1 AND failed_at >= $2
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, accountID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, accountID string) error {
	query := `
		DELETE FROM failed_logins
		WHERE account_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
