package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/lockout"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	pkglogger "github.com/mansijimba/mediqueue-auth/pkg/logger"
)

// UnlockService handles self-service unlock of a locked account, either by
// the emailed out-of-band token or by answering the security questions.
type UnlockService struct {
	repo   CredentialRepository
	mailer Mailer
	policy lockout.Config
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewUnlockService creates a new UnlockService
func NewUnlockService(repo CredentialRepository, mailer Mailer, policy lockout.Config, logger *slog.Logger, audit *pkglogger.AuditLogger) *UnlockService {
	return &UnlockService{
		repo:   repo,
		mailer: mailer,
		policy: policy,
		logger: logger,
		audit:  audit,
	}
}

// RequestUnlock starts recovery for a locked account. When security
// questions are configured they are returned for the answer path; otherwise
// a fresh unlock token is issued and emailed. Unknown emails and unlocked
// accounts both report ErrAccountNotLocked so the endpoint cannot be used
// to enumerate accounts.
func (s *UnlockService) RequestUnlock(ctx context.Context, email string) ([]string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	cred, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAccountNotLocked
		}
		s.logger.Error("failed to look up credential for unlock request", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if lockout.EvaluateLock(cred.Lock, now) != lockout.GateLocked {
		return nil, models.ErrAccountNotLocked
	}

	if cred.HasSecurityQuestions() {
		s.audit.LogAccountAction("unlock_requested", cred.ID, "", map[string]string{"path": "security_questions"})
		return cred.QuestionTexts(), nil
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate unlock token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	expiry := s.policy.UnlockTokenExpiry(now)
	cred.Lock.UnlockTokenHash = HashUnlockToken(token)
	cred.Lock.UnlockTokenExpiry = &expiry

	if _, err = s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to persist unlock token",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sendAsync(s.logger, "unlock_link", func(ctx context.Context) error {
		return s.mailer.SendUnlockEmail(ctx, email, token, expiry)
	})

	s.audit.LogAccountAction("unlock_requested", cred.ID, "", map[string]string{"path": "unlock_link"})
	return nil, nil
}

// ConfirmUnlockByToken consumes an out-of-band unlock token. The token is
// single-use: a successful unlock clears the stored hash.
func (s *UnlockService) ConfirmUnlockByToken(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrInvalidToken
	}

	cred, err := s.repo.GetByUnlockTokenHash(ctx, HashUnlockToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to look up unlock token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := time.Now()
	if cred.Lock.Status != models.Locked || !cred.Lock.UnlockTokenValid(now) {
		return models.ErrInvalidToken
	}

	return s.unlock(ctx, cred, "unlock_token")
}

// ConfirmUnlockByAnswers unlocks via the security questions. All configured
// questions must be answered correctly in order.
func (s *UnlockService) ConfirmUnlockByAnswers(ctx context.Context, email string, answers []string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	cred, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrChallengeFailed
		}
		s.logger.Error("failed to look up credential for unlock", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if cred.Lock.Status != models.Locked {
		return models.ErrAccountNotLocked
	}

	if !cred.HasSecurityQuestions() {
		return models.ErrChallengeFailed
	}

	if err := VerifyAnswers(cred, PresentedQuestionIndexes(cred), answers); err != nil {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "unlock_failed",
			UserID:        cred.ID,
			FailureReason: "challenge_failed",
			Success:       false,
		})
		return models.ErrChallengeFailed
	}

	return s.unlock(ctx, cred, "security_questions")
}

func (s *UnlockService) unlock(ctx context.Context, cred *models.Credential, method string) error {
	cred.ClearLock()

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to persist unlock",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account unlocked",
		slog.String("credential_id", cred.ID),
		slog.String("method", method))
	s.audit.LogAccountAction("account_unlocked", cred.ID, "", map[string]string{"method": method})
	return nil
}
