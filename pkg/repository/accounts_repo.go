package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

const accountColumns = `
	id, email, first_name, last_name, photo, password_hash, google_id, role, active, is_verified,
	email_otp_hash, email_otp_expires_at, reset_otp_hash, reset_otp_expires_at,
	otp_attempts, otp_blocked_until, reset_token_id, password_changed_at, created_at, updated_at`

// AccountsRepository stores accounts in Postgres.
type AccountsRepository struct {
	db *sql.DB
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

// Create inserts a new account.
func (r *AccountsRepository) Create(ctx context.Context, acct *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		acct.ID, acct.Email, acct.FirstName, acct.LastName, acct.Photo, acct.PasswordHash, acct.GoogleID,
		string(acct.Role), acct.Active, acct.IsVerified,
		acct.EmailVerificationOTP.Hash, acct.EmailVerificationOTP.ExpiresAt,
		acct.PasswordResetOTP.Hash, acct.PasswordResetOTP.ExpiresAt,
		acct.OTPAttempts, acct.OTPBlockedUntil, acct.ResetTokenID, acct.PasswordChangedAt, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapPQError(err))
	}
	return nil
}

// GetByID retrieves an account by ID regardless of active state.
func (r *AccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves an account by email regardless of active state.
func (r *AccountsRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.getOne(ctx, query, email)
}

// GetActiveByEmail retrieves an active account by email.
func (r *AccountsRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1) AND active = TRUE`
	return r.getOne(ctx, query, email)
}

// GetByGoogleID retrieves an account by its linked Google subject.
func (r *AccountsRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE google_id = $1`
	return r.getOne(ctx, query, googleID)
}

// Update replaces every mutable column of the account.
func (r *AccountsRepository) Update(ctx context.Context, acct *domain.Account) error {
	query := `
		UPDATE accounts
		SET email = $2, first_name = $3, last_name = $4, photo = $5, password_hash = $6, google_id = $7,
		    role = $8, active = $9, is_verified = $10,
		    email_otp_hash = $11, email_otp_expires_at = $12, reset_otp_hash = $13, reset_otp_expires_at = $14,
		    otp_attempts = $15, otp_blocked_until = $16, reset_token_id = $17, password_changed_at = $18,
		    updated_at = $19
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		acct.ID, acct.Email, acct.FirstName, acct.LastName, acct.Photo, acct.PasswordHash, acct.GoogleID,
		string(acct.Role), acct.Active, acct.IsVerified,
		acct.EmailVerificationOTP.Hash, acct.EmailVerificationOTP.ExpiresAt,
		acct.PasswordResetOTP.Hash, acct.PasswordResetOTP.ExpiresAt,
		acct.OTPAttempts, acct.OTPBlockedUntil, acct.ResetTokenID, acct.PasswordChangedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", mapPQError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountsRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	acct := &domain.Account{}
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&acct.ID, &acct.Email, &acct.FirstName, &acct.LastName, &acct.Photo, &acct.PasswordHash, &acct.GoogleID,
		&role, &acct.Active, &acct.IsVerified,
		&acct.EmailVerificationOTP.Hash, &acct.EmailVerificationOTP.ExpiresAt,
		&acct.PasswordResetOTP.Hash, &acct.PasswordResetOTP.ExpiresAt,
		&acct.OTPAttempts, &acct.OTPBlockedUntil, &acct.ResetTokenID, &acct.PasswordChangedAt, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	acct.Role = domain.Role(role)
	return acct, nil
}
