package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// ChallengeService issues and verifies the secondary factors that are not
// TOTP: emailed one-time codes and security-question sets.
type ChallengeService struct {
	repo      CredentialRepository
	mailer    Mailer
	logger    *slog.Logger
	otpExpiry time.Duration
}

// NewChallengeService creates a new ChallengeService
func NewChallengeService(repo CredentialRepository, mailer Mailer, logger *slog.Logger, otpExpiry time.Duration) *ChallengeService {
	return &ChallengeService{
		repo:      repo,
		mailer:    mailer,
		logger:    logger,
		otpExpiry: otpExpiry,
	}
}

// generateNumericCode returns a uniformly random zero-padded code of the
// given length, from crypto/rand. The unguessability of these codes is a
// security invariant, so a general-purpose PRNG is not acceptable here.
func generateNumericCode(digits int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// sendAsync dispatches mail on a detached goroutine. Delivery failures are
// logged and never propagate into the authentication decision.
func sendAsync(logger *slog.Logger, what string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			logger.Error("email dispatch failed",
				slog.String("email_kind", what),
				slog.Any("error", err))
		}
	}()
}

// IssueEmailOTP generates a 6-digit one-time code for the credential,
// stores its bcrypt hash with a short expiry and emails the plain code.
// Issuing a new code invalidates any prior one by overwrite.
func (s *ChallengeService) IssueEmailOTP(ctx context.Context, cred *models.Credential) error {
	code, err := generateNumericCode(6)
	if err != nil {
		s.logger.Error("failed to generate email OTP", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash email OTP", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.otpExpiry)
	cred.EmailOTPHash = string(hash)
	cred.EmailOTPExpiry = &expiresAt

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to persist email OTP",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	email := cred.Email
	sendAsync(s.logger, "login_code", func(ctx context.Context) error {
		return s.mailer.SendLoginCode(ctx, email, code, expiresAt)
	})

	s.logger.Info("email OTP issued", slog.String("credential_id", cred.ID))
	return nil
}

// VerifyEmailOTP checks a submitted code against the outstanding one.
// The stored code is cleared on success and on expiry; an incorrect but
// unexpired code is retained so the holder may retry.
func (s *ChallengeService) VerifyEmailOTP(ctx context.Context, cred *models.Credential, code string) error {
	now := time.Now()

	if cred.EmailOTPHash == "" {
		return models.ErrChallengeFailed
	}

	if !cred.EmailOTPValid(now) {
		cred.ClearEmailOTP()
		if _, err := s.repo.Update(ctx, cred); err != nil {
			s.logger.Error("failed to clear expired email OTP",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
		}
		return models.ErrChallengeFailed
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.EmailOTPHash), []byte(code)) != nil {
		return models.ErrChallengeFailed
	}

	cred.ClearEmailOTP()
	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to clear used email OTP",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// PresentedQuestionIndexes returns the indexes of the questions put to the
// caller for a challenge. The full configured set is presented; the indexes
// ride in the pending-challenge token so the answered set cannot drift from
// the presented one.
func PresentedQuestionIndexes(cred *models.Credential) []int {
	indexes := make([]int, len(cred.SecurityQuestions))
	for i := range cred.SecurityQuestions {
		indexes[i] = i
	}
	return indexes
}

// QuestionsAt returns the question texts for the given indexes.
func QuestionsAt(cred *models.Credential, indexes []int) ([]string, error) {
	texts := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(cred.SecurityQuestions) {
			return nil, models.ErrInvalidToken
		}
		texts = append(texts, cred.SecurityQuestions[idx].Question)
	}
	return texts, nil
}

// VerifyAnswers compares submitted answers against the hashes of the
// presented questions. Every answer must match; a single mismatch fails
// the whole challenge.
func VerifyAnswers(cred *models.Credential, indexes []int, answers []string) error {
	if len(indexes) == 0 || len(answers) != len(indexes) {
		return models.ErrChallengeFailed
	}

	for i, idx := range indexes {
		if idx < 0 || idx >= len(cred.SecurityQuestions) {
			return models.ErrChallengeFailed
		}
		hash := cred.SecurityQuestions[idx].AnswerHash
		if pkgauth.ComparePassword(hash, normalizeAnswer(answers[i])) != nil {
			return models.ErrChallengeFailed
		}
	}

	return nil
}

// HashAnswer prepares a security-question answer for storage.
func HashAnswer(answer string) (string, error) {
	return pkgauth.HashPassword(normalizeAnswer(answer))
}

// normalizeAnswer makes answer comparison insensitive to case and
// surrounding whitespace.
func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
