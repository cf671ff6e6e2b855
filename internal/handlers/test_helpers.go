package handlers

import (
	"context"

	"github.com/mansijimba/mediqueue-auth/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc                func(ctx context.Context, email, password, fullName, phone string, questions []services.RegistrationQuestion) (*services.IdentityResponse, error)
	LoginFunc                   func(ctx context.Context, email, password string) (*services.LoginResult, error)
	ResumeMFAFunc               func(ctx context.Context, pendingToken, code string) (*services.LoginResult, error)
	RequestLoginCodeFunc        func(ctx context.Context, pendingToken string) error
	ResumeSecurityChallengeFunc func(ctx context.Context, pendingToken string, answers []string) (*services.LoginResult, error)
	ChangePasswordFunc          func(ctx context.Context, credentialID, currentPassword, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, email, password, fullName, phone string, questions []services.RegistrationQuestion) (*services.IdentityResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, fullName, phone, questions)
	}
	return nil, nil
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, nil
}

func (m *MockAuthService) ResumeMFA(ctx context.Context, pendingToken, code string) (*services.LoginResult, error) {
	if m.ResumeMFAFunc != nil {
		return m.ResumeMFAFunc(ctx, pendingToken, code)
	}
	return nil, nil
}

func (m *MockAuthService) RequestLoginCode(ctx context.Context, pendingToken string) error {
	if m.RequestLoginCodeFunc != nil {
		return m.RequestLoginCodeFunc(ctx, pendingToken)
	}
	return nil
}

func (m *MockAuthService) ResumeSecurityChallenge(ctx context.Context, pendingToken string, answers []string) (*services.LoginResult, error) {
	if m.ResumeSecurityChallengeFunc != nil {
		return m.ResumeSecurityChallengeFunc(ctx, pendingToken, answers)
	}
	return nil, nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, credentialID, currentPassword, newPassword)
	}
	return nil
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	SetupFunc   func(ctx context.Context, credentialID string) (*services.MFASetupResponse, error)
	ConfirmFunc func(ctx context.Context, credentialID, code string) error
	DisableFunc func(ctx context.Context, credentialID, password string) error
}

func (m *MockMFAService) Setup(ctx context.Context, credentialID string) (*services.MFASetupResponse, error) {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, credentialID)
	}
	return nil, nil
}

func (m *MockMFAService) Confirm(ctx context.Context, credentialID, code string) error {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, credentialID, code)
	}
	return nil
}

func (m *MockMFAService) Disable(ctx context.Context, credentialID, password string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, credentialID, password)
	}
	return nil
}

// MockUnlockService implements UnlockServiceInterface for testing
type MockUnlockService struct {
	RequestUnlockFunc          func(ctx context.Context, email string) ([]string, error)
	ConfirmUnlockByTokenFunc   func(ctx context.Context, token string) error
	ConfirmUnlockByAnswersFunc func(ctx context.Context, email string, answers []string) error
}

func (m *MockUnlockService) RequestUnlock(ctx context.Context, email string) ([]string, error) {
	if m.RequestUnlockFunc != nil {
		return m.RequestUnlockFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockUnlockService) ConfirmUnlockByToken(ctx context.Context, token string) error {
	if m.ConfirmUnlockByTokenFunc != nil {
		return m.ConfirmUnlockByTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockUnlockService) ConfirmUnlockByAnswers(ctx context.Context, email string, answers []string) error {
	if m.ConfirmUnlockByAnswersFunc != nil {
		return m.ConfirmUnlockByAnswersFunc(ctx, email, answers)
	}
	return nil
}
