package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkghttp "github.com/mansijimba/mediqueue-auth/pkg/http"
)

// UnlockServiceInterface defines the interface for self-service unlock
type UnlockServiceInterface interface {
	RequestUnlock(ctx context.Context, email string) ([]string, error)
	ConfirmUnlockByToken(ctx context.Context, token string) error
	ConfirmUnlockByAnswers(ctx context.Context, email string, answers []string) error
}

// UnlockHandler handles account unlock HTTP requests
type UnlockHandler struct {
	service UnlockServiceInterface
}

// NewUnlockHandler creates a new UnlockHandler
func NewUnlockHandler(service UnlockServiceInterface) *UnlockHandler {
	return &UnlockHandler{service: service}
}

// RequestUnlockRequest represents the request body for an unlock email
type RequestUnlockRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmUnlockRequest confirms an unlock with either the emailed token or
// the security-question answers. Exactly one proof is expected.
type ConfirmUnlockRequest struct {
	Token   string   `json:"token" validate:"omitempty"`
	Email   string   `json:"email" validate:"omitempty,email"`
	Answers []string `json:"answers" validate:"omitempty,dive,required"`
}

// RequestUnlock starts recovery for a locked account. The response carries
// the security questions when that path is configured; otherwise the unlock
// link is emailed.
func (h *UnlockHandler) RequestUnlock(w http.ResponseWriter, r *http.Request) {
	var req RequestUnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	questions, err := h.service.RequestUnlock(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountNotLocked):
			pkghttp.WriteError(w, http.StatusConflict, "account_not_locked",
				"This account is not locked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(questions) > 0 {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string][]string{"questions": questions})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "An unlock link has been sent to the account email",
	})
}

// ConfirmUnlock unlocks an account with a token or security answers
func (h *UnlockHandler) ConfirmUnlock(w http.ResponseWriter, r *http.Request) {
	var req ConfirmUnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var err error
	switch {
	case req.Token != "":
		err = h.service.ConfirmUnlockByToken(r.Context(), req.Token)
	case req.Email != "" && len(req.Answers) > 0:
		err = h.service.ConfirmUnlockByAnswers(r.Context(), req.Email, req.Answers)
	default:
		pkghttp.WriteBadRequest(w, "Either a token or email and answers are required")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteUnauthorized(w, "Invalid or expired unlock token")
		case errors.Is(err, models.ErrChallengeFailed):
			pkghttp.WriteUnauthorized(w, "Unlock verification failed")
		case errors.Is(err, models.ErrAccountNotLocked):
			pkghttp.WriteError(w, http.StatusConflict, "account_not_locked",
				"This account is not locked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Account unlocked. You can sign in now.",
	})
}
