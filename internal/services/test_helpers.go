package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/lockout"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	pkglogger "github.com/mansijimba/mediqueue-auth/pkg/logger"
)

// MockCredentialRepository implements CredentialRepository for testing
type MockCredentialRepository struct {
	CreateFunc               func(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.Credential, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.Credential, error)
	GetByUnlockTokenHashFunc func(ctx context.Context, tokenHash string) (*models.Credential, error)
	UpdateFunc               func(ctx context.Context, cred *models.Credential) (*models.Credential, error)
}

func (m *MockCredentialRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cred)
	}
	return nil, models.ErrInternalServer
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) GetByUnlockTokenHash(ctx context.Context, tokenHash string) (*models.Credential, error) {
	if m.GetByUnlockTokenHashFunc != nil {
		return m.GetByUnlockTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) Update(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, cred)
	}
	return cred, nil
}

// MockMailer implements Mailer for testing. Sent messages are recorded so
// tests can assert on dispatch without a real SES client.
type MockMailer struct {
	SendUnlockEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendLoginCodeFunc   func(ctx context.Context, email, code string, expiresAt time.Time) error
}

func (m *MockMailer) SendUnlockEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendUnlockEmailFunc != nil {
		return m.SendUnlockEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockMailer) SendLoginCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

const (
	testJWTSecret = "test-secret-32-characters-long!!"
	testPassword  = "SecurePassword123!"
)

// NewTestCredential returns a credential with the standard test password
// already hashed and a fresh password expiry.
func NewTestCredential(id, email string) *models.Credential {
	hash, err := pkgauth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}

	now := time.Now()
	return &models.Credential{
		ID:                id,
		Email:             email,
		FullName:          "Test User",
		PasswordHash:      hash,
		PasswordChangedAt: now,
		PasswordExpiry:    now.Add(90 * 24 * time.Hour),
		Lock:              models.LockState{Status: models.Unlocked},
		MFA:               models.MFAState{Status: models.MFADisabled},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// WithSecurityQuestions attaches hashed answers for the given question/answer
// pairs.
func WithSecurityQuestions(cred *models.Credential, pairs map[string]string) *models.Credential {
	for question, answer := range pairs {
		hash, err := HashAnswer(answer)
		if err != nil {
			panic(err)
		}
		cred.SecurityQuestions = append(cred.SecurityQuestions, models.SecurityQuestion{
			Question:   question,
			AnswerHash: hash,
		})
	}
	return cred
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testJWTSecret, 7*24*time.Hour, 10*time.Minute)
}

func newTestAuthService(repo CredentialRepository, mailer Mailer) *AuthService {
	logger := slog.Default()
	return NewAuthService(
		repo,
		newTestTokenManager(),
		auth.NewTOTPManager("MediQueue Test"),
		NewChallengeService(repo, mailer, logger, 5*time.Minute),
		mailer,
		lockout.DefaultConfig(),
		auth.NewTimingDelay(auth.TimingConfig{}),
		logger,
		pkglogger.NewAuditLogger(logger),
		90*24*time.Hour,
	)
}

func newTestMFAService(repo CredentialRepository) *MFAService {
	logger := slog.Default()
	return NewMFAService(repo, auth.NewTOTPManager("MediQueue Test"), logger, pkglogger.NewAuditLogger(logger))
}

func newTestUnlockService(repo CredentialRepository, mailer Mailer) *UnlockService {
	logger := slog.Default()
	return NewUnlockService(repo, mailer, lockout.DefaultConfig(), logger, pkglogger.NewAuditLogger(logger))
}
