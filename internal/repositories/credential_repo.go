package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mansijimba/mediqueue-auth/internal/database"
	"github.com/mansijimba/mediqueue-auth/internal/models"
)

const credentialColumns = `
	id, email, full_name, phone,
	password_hash, password_history, password_changed_at, password_expiry,
	failed_login_attempts, lock_status, lock_until, unlock_token_hash, unlock_token_expiry,
	security_questions, mfa_status, mfa_secret, mfa_temp_secret,
	email_otp_hash, email_otp_expiry, created_at, updated_at`

// CredentialRepository persists Credential records in Postgres.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredentialRow(scanner rowScanner) (*models.Credential, error) {
	var cred models.Credential
	var historyJSON, questionsJSON []byte
	var lockUntil, unlockTokenExpiry, emailOTPExpiry *time.Time
	var unlockTokenHash, mfaSecret, mfaTempSecret, emailOTPHash *string
	var lockStatus, mfaStatus string

	err := scanner.Scan(
		&cred.ID, &cred.Email, &cred.FullName, &cred.Phone,
		&cred.PasswordHash, &historyJSON, &cred.PasswordChangedAt, &cred.PasswordExpiry,
		&cred.FailedLoginAttempts, &lockStatus, &lockUntil, &unlockTokenHash, &unlockTokenExpiry,
		&questionsJSON, &mfaStatus, &mfaSecret, &mfaTempSecret,
		&emailOTPHash, &emailOTPExpiry, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if err := json.Unmarshal(historyJSON, &cred.PasswordHistory); err != nil {
		return nil, fmt.Errorf("failed to decode password history: %w", err)
	}
	if err := json.Unmarshal(questionsJSON, &cred.SecurityQuestions); err != nil {
		return nil, fmt.Errorf("failed to decode security questions: %w", err)
	}

	cred.Lock = models.LockState{
		Status:            models.LockStatus(lockStatus),
		Until:             lockUntil,
		UnlockTokenExpiry: unlockTokenExpiry,
	}
	if unlockTokenHash != nil {
		cred.Lock.UnlockTokenHash = *unlockTokenHash
	}

	cred.MFA = models.MFAState{Status: models.MFAStatus(mfaStatus)}
	if mfaSecret != nil {
		cred.MFA.Secret = *mfaSecret
	}
	if mfaTempSecret != nil {
		cred.MFA.TempSecret = *mfaTempSecret
	}

	if emailOTPHash != nil {
		cred.EmailOTPHash = *emailOTPHash
	}
	cred.EmailOTPExpiry = emailOTPExpiry

	return &cred, nil
}

// encodeJSONFields marshals the jsonb columns, normalizing nil slices to [].
func encodeJSONFields(cred *models.Credential) (history, questions []byte, err error) {
	if cred.PasswordHistory == nil {
		cred.PasswordHistory = []models.PasswordRecord{}
	}
	if cred.SecurityQuestions == nil {
		cred.SecurityQuestions = []models.SecurityQuestion{}
	}

	history, err = json.Marshal(cred.PasswordHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode password history: %w", err)
	}
	questions, err = json.Marshal(cred.SecurityQuestions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode security questions: %w", err)
	}
	return history, questions, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new credential. Returns ErrConflict when the email is
// already registered.
func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	cred.ID = uuid.New().String()
	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	if cred.Lock.Status == "" {
		cred.Lock.Status = models.Unlocked
	}
	if cred.MFA.Status == "" {
		cred.MFA.Status = models.MFADisabled
	}

	historyJSON, questionsJSON, err := encodeJSONFields(cred)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO credentials (
			id, email, full_name, phone,
			password_hash, password_history, password_changed_at, password_expiry,
			failed_login_attempts, lock_status, lock_until, unlock_token_hash, unlock_token_expiry,
			security_questions, mfa_status, mfa_secret, mfa_temp_secret,
			email_otp_hash, email_otp_expiry, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + credentialColumns

	return scanCredentialRow(r.pool.QueryRow(ctx, query,
		cred.ID, cred.Email, cred.FullName, cred.Phone,
		cred.PasswordHash, historyJSON, cred.PasswordChangedAt, cred.PasswordExpiry,
		cred.FailedLoginAttempts, string(cred.Lock.Status), cred.Lock.Until,
		nullable(cred.Lock.UnlockTokenHash), cred.Lock.UnlockTokenExpiry,
		questionsJSON, string(cred.MFA.Status), nullable(cred.MFA.Secret), nullable(cred.MFA.TempSecret),
		nullable(cred.EmailOTPHash), cred.EmailOTPExpiry, cred.CreatedAt, cred.UpdatedAt,
	))
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	return scanCredentialRow(r.pool.QueryRow(ctx, query, id))
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE email = $1`
	return scanCredentialRow(r.pool.QueryRow(ctx, query, email))
}

// GetByUnlockTokenHash looks up a credential by the hash of an out-of-band
// unlock token. Expiry is checked by the caller against the returned state.
func (r *CredentialRepository) GetByUnlockTokenHash(ctx context.Context, tokenHash string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE unlock_token_hash = $1`
	return scanCredentialRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// Update persists the full credential state in a single write. Callers
// re-read before mutating; no multi-writer guarantee is given here.
func (r *CredentialRepository) Update(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	cred.UpdatedAt = time.Now()

	historyJSON, questionsJSON, err := encodeJSONFields(cred)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE credentials SET
			full_name = $1, phone = $2,
			password_hash = $3, password_history = $4, password_changed_at = $5, password_expiry = $6,
			failed_login_attempts = $7, lock_status = $8, lock_until = $9,
			unlock_token_hash = $10, unlock_token_expiry = $11,
			security_questions = $12, mfa_status = $13, mfa_secret = $14, mfa_temp_secret = $15,
			email_otp_hash = $16, email_otp_expiry = $17, updated_at = $18
		WHERE id = $19
		RETURNING ` + credentialColumns

	return scanCredentialRow(r.pool.QueryRow(ctx, query,
		cred.FullName, cred.Phone,
		cred.PasswordHash, historyJSON, cred.PasswordChangedAt, cred.PasswordExpiry,
		cred.FailedLoginAttempts, string(cred.Lock.Status), cred.Lock.Until,
		nullable(cred.Lock.UnlockTokenHash), cred.Lock.UnlockTokenExpiry,
		questionsJSON, string(cred.MFA.Status), nullable(cred.MFA.Secret), nullable(cred.MFA.TempSecret),
		nullable(cred.EmailOTPHash), cred.EmailOTPExpiry, cred.UpdatedAt, cred.ID,
	))
}

// ClearExpiredTransients removes expired email one-time codes and unlock
// tokens. Expired locks are left in place; the next login attempt clears
// them through the policy gate.
func (r *CredentialRepository) ClearExpiredTransients(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE credentials SET
			email_otp_hash = CASE WHEN email_otp_expiry <= $1 THEN NULL ELSE email_otp_hash END,
			email_otp_expiry = CASE WHEN email_otp_expiry <= $1 THEN NULL ELSE email_otp_expiry END,
			unlock_token_hash = CASE WHEN unlock_token_expiry <= $1 THEN NULL ELSE unlock_token_hash END,
			unlock_token_expiry = CASE WHEN unlock_token_expiry <= $1 THEN NULL ELSE unlock_token_expiry END
		WHERE email_otp_expiry <= $1 OR unlock_token_expiry <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
