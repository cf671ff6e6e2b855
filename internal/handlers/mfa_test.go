package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/mansijimba/mediqueue-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	claims := &models.TokenClaims{Type: models.TokenTypeSession, CredentialID: "cred1"}
	return req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, claims))
}

func TestMFAHandler_Setup_Success(t *testing.T) {
	svc := &MockMFAService{
		SetupFunc: func(ctx context.Context, credentialID string) (*services.MFASetupResponse, error) {
			return &services.MFASetupResponse{
				Secret:          "JBSWY3DPEHPK3PXP",
				ProvisioningURI: "otpauth://totp/MediQueue:user@example.com",
				QRCode:          "data:image/png;base64,xxxx",
			}, nil
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Setup(rec, sessionRequest(t, "/auth/mfa/setup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", body["secret"])
	assert.NotEmpty(t, body["qr_code"])
}

func TestMFAHandler_Setup_AlreadyEnabled(t *testing.T) {
	svc := &MockMFAService{
		SetupFunc: func(ctx context.Context, credentialID string) (*services.MFASetupResponse, error) {
			return nil, models.ErrConflict
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Setup(rec, sessionRequest(t, "/auth/mfa/setup", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMFAHandler_Setup_RequiresSession(t *testing.T) {
	handler := NewMFAHandler(&MockMFAService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/mfa/setup", nil)
	rec := httptest.NewRecorder()
	handler.Setup(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMFAHandler_Confirm_Success(t *testing.T) {
	var gotCode string
	svc := &MockMFAService{
		ConfirmFunc: func(ctx context.Context, credentialID, code string) error {
			gotCode = code
			return nil
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Confirm(rec, sessionRequest(t, "/auth/mfa/confirm", ConfirmMFARequest{Code: "123456"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", gotCode)
}

func TestMFAHandler_Confirm_WrongCode(t *testing.T) {
	svc := &MockMFAService{
		ConfirmFunc: func(ctx context.Context, credentialID, code string) error {
			return models.ErrChallengeFailed
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Confirm(rec, sessionRequest(t, "/auth/mfa/confirm", ConfirmMFARequest{Code: "654321"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMFAHandler_Confirm_NoEnrollmentInProgress(t *testing.T) {
	svc := &MockMFAService{
		ConfirmFunc: func(ctx context.Context, credentialID, code string) error {
			return models.ErrBadRequest
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Confirm(rec, sessionRequest(t, "/auth/mfa/confirm", ConfirmMFARequest{Code: "123456"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMFAHandler_Disable_WrongPassword(t *testing.T) {
	svc := &MockMFAService{
		DisableFunc: func(ctx context.Context, credentialID, password string) error {
			return models.ErrUnauthorized
		},
	}

	handler := NewMFAHandler(svc)
	rec := httptest.NewRecorder()
	handler.Disable(rec, sessionRequest(t, "/auth/mfa/disable", DisableMFARequest{Password: "WrongPassword1!"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
