package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/mansijimba/mediqueue-auth/internal/services"
	pkghttp "github.com/mansijimba/mediqueue-auth/pkg/http"
)

// MFAServiceInterface defines the interface for TOTP enrollment
type MFAServiceInterface interface {
	Setup(ctx context.Context, credentialID string) (*services.MFASetupResponse, error)
	Confirm(ctx context.Context, credentialID, code string) error
	Disable(ctx context.Context, credentialID, password string) error
}

// MFAHandler handles TOTP enrollment HTTP requests
type MFAHandler struct {
	service MFAServiceInterface
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface) *MFAHandler {
	return &MFAHandler{service: service}
}

// ConfirmMFARequest represents the request body for MFA confirmation
type ConfirmMFARequest struct {
	Code string `json:"code" validate:"required,min=6,max=6"`
}

// DisableMFARequest represents the request body for MFA disable
type DisableMFARequest struct {
	Password string `json:"password" validate:"required"`
}

// Setup begins TOTP enrollment for the authenticated account
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.service.Setup(r.Context(), session.CredentialID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Confirm completes TOTP enrollment
func (h *MFAHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ConfirmMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Confirm(r.Context(), session.CredentialID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrChallengeFailed):
			pkghttp.WriteUnauthorized(w, "Invalid verification code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "No MFA enrollment in progress")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "MFA enabled successfully",
	})
}

// Disable turns MFA off for the authenticated account
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), session.CredentialID, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "MFA disabled",
	})
}
