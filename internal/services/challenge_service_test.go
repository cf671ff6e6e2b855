package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChallengeService(repo CredentialRepository, mailer Mailer) *ChallengeService {
	return NewChallengeService(repo, mailer, slog.Default(), 5*time.Minute)
}

func issueCode(t *testing.T, svc *ChallengeService, cred *models.Credential) string {
	t.Helper()

	sent := make(chan string, 1)
	svc.mailer = &MockMailer{
		SendLoginCodeFunc: func(ctx context.Context, email, code string, expiresAt time.Time) error {
			sent <- code
			return nil
		},
	}

	require.NoError(t, svc.IssueEmailOTP(context.Background(), cred))

	select {
	case code := <-sent:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("login code was not dispatched")
		return ""
	}
}

func TestChallengeService_IssueEmailOTP_StoresHashNotCode(t *testing.T) {
	cred := NewTestCredential("cred1", "user@example.com")
	repo := &MockCredentialRepository{}

	svc := newTestChallengeService(repo, &MockMailer{})
	code := issueCode(t, svc, cred)

	assert.Len(t, code, 6)
	assert.NotEmpty(t, cred.EmailOTPHash)
	assert.NotContains(t, cred.EmailOTPHash, code)
	require.NotNil(t, cred.EmailOTPExpiry)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *cred.EmailOTPExpiry, 5*time.Second)
}

func TestChallengeService_VerifyEmailOTP_CorrectCode_SingleUse(t *testing.T) {
	cred := NewTestCredential("cred1", "user@example.com")
	repo := &MockCredentialRepository{}

	svc := newTestChallengeService(repo, &MockMailer{})
	code := issueCode(t, svc, cred)

	require.NoError(t, svc.VerifyEmailOTP(context.Background(), cred, code))
	assert.Empty(t, cred.EmailOTPHash)
	assert.Nil(t, cred.EmailOTPExpiry)

	// A spent code cannot be replayed.
	assert.Equal(t, models.ErrChallengeFailed, svc.VerifyEmailOTP(context.Background(), cred, code))
}

func TestChallengeService_VerifyEmailOTP_WrongCode_Retryable(t *testing.T) {
	cred := NewTestCredential("cred1", "user@example.com")
	repo := &MockCredentialRepository{}

	svc := newTestChallengeService(repo, &MockMailer{})
	code := issueCode(t, svc, cred)

	assert.Equal(t, models.ErrChallengeFailed, svc.VerifyEmailOTP(context.Background(), cred, "000000"))
	assert.NotEmpty(t, cred.EmailOTPHash)

	require.NoError(t, svc.VerifyEmailOTP(context.Background(), cred, code))
}

func TestChallengeService_VerifyEmailOTP_Expired(t *testing.T) {
	cred := NewTestCredential("cred1", "user@example.com")
	repo := &MockCredentialRepository{}

	svc := newTestChallengeService(repo, &MockMailer{})
	code := issueCode(t, svc, cred)

	past := time.Now().Add(-1 * time.Minute)
	cred.EmailOTPExpiry = &past

	assert.Equal(t, models.ErrChallengeFailed, svc.VerifyEmailOTP(context.Background(), cred, code))
	assert.Empty(t, cred.EmailOTPHash)
}

func TestChallengeService_IssueEmailOTP_NewCodeInvalidatesOld(t *testing.T) {
	cred := NewTestCredential("cred1", "user@example.com")
	repo := &MockCredentialRepository{}

	svc := newTestChallengeService(repo, &MockMailer{})
	first := issueCode(t, svc, cred)
	second := issueCode(t, svc, cred)

	if first == second {
		t.Skip("codes collided; cannot distinguish old from new")
	}

	assert.Equal(t, models.ErrChallengeFailed, svc.VerifyEmailOTP(context.Background(), cred, first))
	require.NoError(t, svc.VerifyEmailOTP(context.Background(), cred, second))
}

func TestVerifyAnswers_AllMustMatch(t *testing.T) {
	cred := WithSecurityQuestions(NewTestCredential("cred1", "user@example.com"), map[string]string{})
	for _, pair := range []struct{ q, a string }{
		{"First pet?", "Rex"},
		{"Birth city?", "Pokhara"},
	} {
		cred = WithSecurityQuestions(cred, map[string]string{pair.q: pair.a})
	}

	indexes := []int{0, 1}

	assert.NoError(t, VerifyAnswers(cred, indexes, []string{"Rex", "Pokhara"}))
	assert.NoError(t, VerifyAnswers(cred, indexes, []string{" rex ", "POKHARA"}))

	assert.Equal(t, models.ErrChallengeFailed, VerifyAnswers(cred, indexes, []string{"Rex", "Kathmandu"}))
	assert.Equal(t, models.ErrChallengeFailed, VerifyAnswers(cred, indexes, []string{"Rex"}))
	assert.Equal(t, models.ErrChallengeFailed, VerifyAnswers(cred, nil, nil))
}

func TestVerifyAnswers_OutOfRangeIndex(t *testing.T) {
	cred := WithSecurityQuestions(NewTestCredential("cred1", "user@example.com"), map[string]string{
		"First pet?": "Rex",
	})

	assert.Equal(t, models.ErrChallengeFailed, VerifyAnswers(cred, []int{5}, []string{"Rex"}))
}

func TestQuestionsAt_OutOfRangeIndex(t *testing.T) {
	cred := WithSecurityQuestions(NewTestCredential("cred1", "user@example.com"), map[string]string{
		"First pet?": "Rex",
	})

	texts, err := QuestionsAt(cred, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []string{"First pet?"}, texts)

	_, err = QuestionsAt(cred, []int{1})
	assert.Equal(t, models.ErrInvalidToken, err)
}
