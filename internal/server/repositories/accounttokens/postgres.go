package accounttokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Replace runs two statements; callers that need them atomic pass a *sql.Tx.
func (r *PostgresRepository) Replace(ctx context.Context, accountID string, purpose models.TokenPurpose, hash string, expiresAt time.Time) error {
	del := `
		DELETE FROM account_tokens
		WHERE account_id = $1 AND purpose = $2 AND used = FALSE
	`
	if _, err := r.db.ExecContext(ctx, del, accountID, string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	ins := `
		INSERT INTO account_tokens (token_hash, account_id, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, ins, hash, accountID, string(purpose), expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Claim(ctx context.Context, hash string, purpose models.TokenPurpose, now time.Time) (string, error) {
	query := `
		UPDATE account_tokens SET used = TRUE
		WHERE token_hash = $1 AND purpose = $2 AND used = FALSE AND expires_at > $3
		RETURNING account_id
	`
	var accountID string
	err := r.db.QueryRowContext(ctx, query, hash, string(purpose), now).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return accountID, nil
}
