package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectAccount = `SELECT id, name, email, password_hash, role, otp_secret, otp_enabled,
		current_session_token, locked_until, email_verified, created_at
		FROM accounts`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (name, email, password_hash, role, email_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		account.Name, account.Email, account.PasswordHash, string(account.Role), account.EmailVerified,
	).Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, selectAccount+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.get(ctx, selectAccount+` WHERE id = $1`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg string) (*models.Account, error) {
	var (
		a            models.Account
		role         string
		otpSecret    sql.NullString
		sessionToken sql.NullString
		lockedUntil  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &otpSecret, &a.OTPEnabled,
		&sessionToken, &lockedUntil, &a.EmailVerified, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Role = models.Role(role)
	a.OTPSecret = otpSecret.String
	a.CurrentSessionToken = sessionToken.String
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}

	return &a, nil
}

func (r *PostgresRepository) ExtendLock(ctx context.Context, id string, until time.Time) error {
	query :=
		`UPDATE accounts SET locked_until = $2
		 WHERE id = $1 AND (locked_until IS NULL OR locked_until < $2)`

	if _, err := r.db.ExecContext(ctx, query, id, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ClearLock(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET locked_until = NULL WHERE id = $1`, id)
}

func (r *PostgresRepository) SetSessionToken(ctx context.Context, id string, token string) error {
	return r.exec(ctx, `UPDATE accounts SET current_session_token = $2 WHERE id = $1`, id, nullString(token))
}

func (r *PostgresRepository) SetOTP(ctx context.Context, id string, sealedSecret string, enabled bool) error {
	return r.exec(ctx, `UPDATE accounts SET otp_secret = $2, otp_enabled = $3 WHERE id = $1`,
		id, nullString(sealedSecret), enabled)
}

func (r *PostgresRepository) EnableOTP(ctx context.Context, id string, sealedSecret string) error {
	return r.exec(ctx, `UPDATE accounts SET otp_enabled = TRUE WHERE id = $1 AND otp_secret = $2`, id, sealedSecret)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return r.exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET email_verified = TRUE WHERE id = $1`, id)
}

// exec runs a single-row update and maps zero affected rows to ErrorNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
