package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUnlockHandler_RequestUnlock_LinkSent(t *testing.T) {
	svc := &MockUnlockService{}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.RequestUnlock, "/auth/unlock/request", RequestUnlockRequest{
		Email: "user@example.com",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestUnlockHandler_RequestUnlock_ReturnsQuestions(t *testing.T) {
	svc := &MockUnlockService{
		RequestUnlockFunc: func(ctx context.Context, email string) ([]string, error) {
			return []string{"First pet?", "Birth city?"}, nil
		},
	}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.RequestUnlock, "/auth/unlock/request", RequestUnlockRequest{
		Email: "user@example.com",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{"First pet?", "Birth city?"}, body["questions"])
}

func TestUnlockHandler_RequestUnlock_NotLocked(t *testing.T) {
	svc := &MockUnlockService{
		RequestUnlockFunc: func(ctx context.Context, email string) ([]string, error) {
			return nil, models.ErrAccountNotLocked
		},
	}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.RequestUnlock, "/auth/unlock/request", RequestUnlockRequest{
		Email: "user@example.com",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "account_not_locked", body["error"])
}

func TestUnlockHandler_ConfirmUnlock_ByToken(t *testing.T) {
	var gotToken string
	svc := &MockUnlockService{
		ConfirmUnlockByTokenFunc: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.ConfirmUnlock, "/auth/unlock/confirm", ConfirmUnlockRequest{
		Token: "opaque-token",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "opaque-token", gotToken)
}

func TestUnlockHandler_ConfirmUnlock_ByAnswers(t *testing.T) {
	var gotEmail string
	var gotAnswers []string
	svc := &MockUnlockService{
		ConfirmUnlockByAnswersFunc: func(ctx context.Context, email string, answers []string) error {
			gotEmail = email
			gotAnswers = answers
			return nil
		},
	}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.ConfirmUnlock, "/auth/unlock/confirm", ConfirmUnlockRequest{
		Email:   "user@example.com",
		Answers: []string{"Rex"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user@example.com", gotEmail)
	assert.Equal(t, []string{"Rex"}, gotAnswers)
}

func TestUnlockHandler_ConfirmUnlock_InvalidToken(t *testing.T) {
	svc := &MockUnlockService{
		ConfirmUnlockByTokenFunc: func(ctx context.Context, token string) error {
			return models.ErrInvalidToken
		},
	}

	handler := NewUnlockHandler(svc)
	rec := postJSON(t, handler.ConfirmUnlock, "/auth/unlock/confirm", ConfirmUnlockRequest{
		Token: "stale-token",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnlockHandler_ConfirmUnlock_NoProofProvided(t *testing.T) {
	handler := NewUnlockHandler(&MockUnlockService{})

	rec := postJSON(t, handler.ConfirmUnlock, "/auth/unlock/confirm", ConfirmUnlockRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
