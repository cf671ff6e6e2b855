package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/lockout"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	pkglogger "github.com/mansijimba/mediqueue-auth/pkg/logger"
)

// CredentialRepository defines the persistence contract for credentials.
// Update persists full state per call; callers re-read before mutating.
type CredentialRepository interface {
	Create(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	GetByUnlockTokenHash(ctx context.Context, tokenHash string) (*models.Credential, error)
	Update(ctx context.Context, cred *models.Credential) (*models.Credential, error)
}

// AuthService is the per-attempt authentication state machine. A login
// submission moves from password evaluation to either a terminal outcome
// (authenticated, locked, rejected) or a pending challenge that a resume
// entry point finishes later. All multi-step state travels in the signed
// pending-challenge token or on the credential record.
type AuthService struct {
	repo       CredentialRepository
	tm         *auth.TokenManager
	totp       *auth.TOTPManager
	challenges *ChallengeService
	mailer     Mailer
	policy     lockout.Config
	timing     *auth.TimingDelay
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger

	passwordMaxAge time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo CredentialRepository,
	tm *auth.TokenManager,
	totp *auth.TOTPManager,
	challenges *ChallengeService,
	mailer Mailer,
	policy lockout.Config,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	passwordMaxAge time.Duration,
) *AuthService {
	return &AuthService{
		repo:           repo,
		tm:             tm,
		totp:           totp,
		challenges:     challenges,
		mailer:         mailer,
		policy:         policy,
		timing:         timing,
		logger:         logger,
		audit:          audit,
		passwordMaxAge: passwordMaxAge,
	}
}

// IdentityResponse is the public view of a credential.
type IdentityResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	MFAEnabled bool   `json:"mfa_enabled"`
	CreatedAt  string `json:"created_at"`
}

// LoginStatus tags the non-error outcomes of a login step.
type LoginStatus string

const (
	LoginAuthenticated     LoginStatus = "authenticated"
	LoginChallengeRequired LoginStatus = "challengeRequired"
	LoginLocked            LoginStatus = "locked"
)

// LoginResult is the outcome of a login or resume step.
type LoginResult struct {
	Status LoginStatus

	// Authenticated
	SessionToken string
	Identity     *IdentityResponse

	// ChallengeRequired
	ChallengeKind string
	PendingToken  string
	Questions     []string

	// Locked
	LockedUntil *time.Time
}

// RegistrationQuestion is a security question with its clear-text answer,
// accepted only at registration/profile time. The answer is hashed before
// it touches the store.
type RegistrationQuestion struct {
	Question string
	Answer   string
}

// Register creates a new credential. Password-policy violations are
// returned as *pkgauth.PasswordValidationError with every broken rule.
func (s *AuthService) Register(ctx context.Context, email, password, fullName, phone string, questions []RegistrationQuestion) (*IdentityResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)

	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: email already registered",
			slog.String("email", pkglogger.SanitizedEmail(email)))
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing credential", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	securityQuestions := make([]models.SecurityQuestion, 0, len(questions))
	for _, q := range questions {
		question := strings.TrimSpace(q.Question)
		if question == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, models.ErrBadRequest
		}
		answerHash, err := HashAnswer(q.Answer)
		if err != nil {
			s.logger.Error("failed to hash security answer", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		securityQuestions = append(securityQuestions, models.SecurityQuestion{
			Question:   question,
			AnswerHash: answerHash,
		})
	}

	now := time.Now()
	cred := &models.Credential{
		Email:             email,
		FullName:          fullName,
		Phone:             strings.TrimSpace(phone),
		PasswordHash:      hashedPassword,
		PasswordChangedAt: now,
		PasswordExpiry:    now.Add(s.passwordMaxAge),
		SecurityQuestions: securityQuestions,
		Lock:              models.LockState{Status: models.Unlocked},
		MFA:               models.MFAState{Status: models.MFADisabled},
	}

	created, err := s.repo.Create(ctx, cred)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create credential", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("credential registered", slog.String("credential_id", created.ID))
	s.audit.LogAccountAction("credential_registered", created.ID, "", nil)

	return credentialToIdentity(created), nil
}

// Login runs one password submission through the state machine.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	cred, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Never reveal whether the email exists
			s.logger.Info("login failed: invalid credentials",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up credential", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()

	switch lockout.EvaluateLock(cred.Lock, now) {
	case lockout.GateLocked:
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			UserID:        cred.ID,
			FailureReason: "account_locked",
			Success:       false,
		})
		return s.lockedResult(cred), nil
	case lockout.GateExpired:
		// The lock window has passed: clear lock state and the counter
		// before evaluating this attempt on its own merits.
		cred.ClearLock()
		if _, err = s.repo.Update(ctx, cred); err != nil {
			s.logger.Error("failed to clear expired lock",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.logger.Info("expired lock cleared", slog.String("credential_id", cred.ID))
	}

	if cred.PasswordExpired(now) {
		s.logger.Info("login blocked: password expired", slog.String("credential_id", cred.ID))
		return nil, models.ErrPasswordExpired
	}

	if pkgauth.ComparePassword(cred.PasswordHash, password) != nil {
		result, err := s.onPasswordFailure(ctx, cred, now)
		s.timing.WaitFrom(start, false)
		return result, err
	}

	// Correct password always zeroes the counter, whatever its prior value.
	cred.FailedLoginAttempts = 0
	cred.Lock = models.LockState{Status: models.Unlocked}
	if _, err = s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to reset failure counter",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if cred.MFA.Status == models.MFAEnabled {
		pendingToken, err := s.tm.GenerateChallengeToken(cred.ID, models.ChallengeKindMFA, nil)
		if err != nil {
			s.logger.Error("failed to issue pending-challenge token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "login_mfa_challenge",
			UserID:    cred.ID,
			Success:   true,
		})

		return &LoginResult{
			Status:        LoginChallengeRequired,
			ChallengeKind: models.ChallengeKindMFA,
			PendingToken:  pendingToken,
		}, nil
	}

	return s.authenticated(cred)
}

// onPasswordFailure applies the tiered lockout policy after a wrong password.
func (s *AuthService) onPasswordFailure(ctx context.Context, cred *models.Credential, now time.Time) (*LoginResult, error) {
	cred.FailedLoginAttempts++

	decision := s.policy.OnPasswordFailure(cred.FailedLoginAttempts)

	// The challenge tier needs configured questions to offer; without them
	// it degrades to a plain rejection with the counter persisted.
	if decision == lockout.Challenge && !cred.HasSecurityQuestions() {
		decision = lockout.Reject
	}

	switch decision {
	case lockout.Lock:
		until := s.policy.LockUntil(now)
		expiry := s.policy.UnlockTokenExpiry(now)

		token, err := pkgauth.GenerateOpaqueToken()
		if err != nil {
			s.logger.Error("failed to generate unlock token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		cred.Lock = models.LockState{
			Status:            models.Locked,
			Until:             &until,
			UnlockTokenHash:   HashUnlockToken(token),
			UnlockTokenExpiry: &expiry,
		}

		if _, err = s.repo.Update(ctx, cred); err != nil {
			s.logger.Error("failed to persist lock",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		email := cred.Email
		sendAsync(s.logger, "unlock_link", func(ctx context.Context) error {
			return s.mailer.SendUnlockEmail(ctx, email, token, expiry)
		})

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_locked",
			UserID:        cred.ID,
			FailureReason: "max_failed_attempts",
			Success:       false,
		})

		return s.lockedResult(cred), nil

	case lockout.Challenge:
		indexes := PresentedQuestionIndexes(cred)
		questions, err := QuestionsAt(cred, indexes)
		if err != nil {
			return nil, models.ErrInternalServer
		}

		pendingToken, err := s.tm.GenerateChallengeToken(cred.ID, models.ChallengeKindSecurityQuestions, indexes)
		if err != nil {
			s.logger.Error("failed to issue pending-challenge token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		if _, err = s.repo.Update(ctx, cred); err != nil {
			s.logger.Error("failed to persist failure counter",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_security_challenge",
			UserID:        cred.ID,
			FailureReason: "repeated_failures",
			Success:       false,
		})

		return &LoginResult{
			Status:        LoginChallengeRequired,
			ChallengeKind: models.ChallengeKindSecurityQuestions,
			PendingToken:  pendingToken,
			Questions:     questions,
		}, nil

	default: // lockout.Reject
		if _, err := s.repo.Update(ctx, cred); err != nil {
			s.logger.Error("failed to persist failure counter",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        cred.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})

		return nil, models.ErrUnauthorized
	}
}

// ResumeMFA finishes a login that is pending an MFA challenge. The proof is
// a current TOTP code, or — when an emailed one-time code is outstanding —
// that code instead.
func (s *AuthService) ResumeMFA(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	claims, err := s.tm.ValidateChallengeToken(pendingToken, models.ChallengeKindMFA)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	cred, err := s.repo.GetByID(ctx, claims.CredentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to load credential for MFA resume", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if cred.MFA.Status != models.MFAEnabled {
		return nil, models.ErrInvalidToken
	}

	if !s.totp.Validate(code, cred.MFA.Secret) {
		if err := s.challenges.VerifyEmailOTP(ctx, cred, code); err != nil {
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "mfa_failed",
				UserID:        cred.ID,
				FailureReason: "invalid_code",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
	}

	return s.authenticated(cred)
}

// RequestLoginCode emails a one-time code usable in place of a TOTP code
// for the login carried by the pending-challenge token.
func (s *AuthService) RequestLoginCode(ctx context.Context, pendingToken string) error {
	claims, err := s.tm.ValidateChallengeToken(pendingToken, models.ChallengeKindMFA)
	if err != nil {
		return models.ErrInvalidToken
	}

	cred, err := s.repo.GetByID(ctx, claims.CredentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to load credential for login code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	return s.challenges.IssueEmailOTP(ctx, cred)
}

// ResumeSecurityChallenge finishes a login that is pending a
// security-question challenge. A failed challenge counts as another failed
// attempt and may itself trip the lock.
func (s *AuthService) ResumeSecurityChallenge(ctx context.Context, pendingToken string, answers []string) (*LoginResult, error) {
	claims, err := s.tm.ValidateChallengeToken(pendingToken, models.ChallengeKindSecurityQuestions)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	cred, err := s.repo.GetByID(ctx, claims.CredentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to load credential for challenge resume", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if lockout.EvaluateLock(cred.Lock, now) == lockout.GateLocked {
		return s.lockedResult(cred), nil
	}

	if err := VerifyAnswers(cred, claims.QuestionIndexes, answers); err != nil {
		return s.onPasswordFailure(ctx, cred, now)
	}

	cred.FailedLoginAttempts = 0
	cred.Lock = models.LockState{Status: models.Unlocked}
	if _, err = s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to reset failure counter",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.authenticated(cred)
}

// ChangePassword rotates the password after re-proving the current one.
// The retired hash joins the history; reuse of the last five is rejected.
func (s *AuthService) ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword string) error {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load credential for password change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if pkgauth.ComparePassword(cred.PasswordHash, currentPassword) != nil {
		s.audit.LogPasswordChange(cred.ID, "", false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hashes := make([]string, 0, len(cred.PasswordHistory)+1)
	hashes = append(hashes, cred.PasswordHash)
	for _, rec := range cred.PasswordHistory {
		hashes = append(hashes, rec.Hash)
	}
	if pkgauth.MatchesAnyHash(newPassword, hashes) {
		return &pkgauth.PasswordValidationError{
			Violations: []string{"must not match any of the last 5 passwords"},
		}
	}

	newHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := time.Now()
	history := append([]models.PasswordRecord{{Hash: cred.PasswordHash, ChangedAt: cred.PasswordChangedAt}}, cred.PasswordHistory...)
	if len(history) > pkgauth.PasswordHistory {
		history = history[:pkgauth.PasswordHistory]
	}

	cred.PasswordHash = newHash
	cred.PasswordHistory = history
	cred.PasswordChangedAt = now
	cred.PasswordExpiry = now.Add(s.passwordMaxAge)
	cred.FailedLoginAttempts = 0
	cred.Lock = models.LockState{Status: models.Unlocked}

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to persist password change",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("credential_id", cred.ID))
	s.audit.LogPasswordChange(cred.ID, "", true)
	return nil
}

// authenticated issues the session token that terminates a successful flow.
func (s *AuthService) authenticated(cred *models.Credential) (*LoginResult, error) {
	sessionToken, err := s.tm.GenerateSessionToken(cred.ID, cred.Email, cred.FullName)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded", slog.String("credential_id", cred.ID))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    cred.ID,
		Success:   true,
	})

	return &LoginResult{
		Status:       LoginAuthenticated,
		SessionToken: sessionToken,
		Identity:     credentialToIdentity(cred),
	}, nil
}

// lockedResult surfaces the remaining lock window and, when the question
// path is configured, the self-unlock question set.
func (s *AuthService) lockedResult(cred *models.Credential) *LoginResult {
	result := &LoginResult{
		Status:      LoginLocked,
		LockedUntil: cred.Lock.Until,
	}
	if cred.HasSecurityQuestions() {
		result.Questions = cred.QuestionTexts()
	}
	return result
}

// HashUnlockToken derives the storage form of an opaque unlock token.
func HashUnlockToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func credentialToIdentity(cred *models.Credential) *IdentityResponse {
	return &IdentityResponse{
		ID:         cred.ID,
		Email:      cred.Email,
		FullName:   cred.FullName,
		Phone:      cred.Phone,
		MFAEnabled: cred.MFA.Status == models.MFAEnabled,
		CreatedAt:  cred.CreatedAt.Format(time.RFC3339),
	}
}
