package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/mansijimba/mediqueue-auth/internal/services"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	pkghttp "github.com/mansijimba/mediqueue-auth/pkg/http"
)

// AuthServiceInterface defines the interface for the authentication flow
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, fullName, phone string, questions []services.RegistrationQuestion) (*services.IdentityResponse, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ResumeMFA(ctx context.Context, pendingToken, code string) (*services.LoginResult, error)
	RequestLoginCode(ctx context.Context, pendingToken string) error
	ResumeSecurityChallenge(ctx context.Context, pendingToken string, answers []string) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword string) error
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// SecurityQuestionInput is a question/answer pair supplied at registration
type SecurityQuestionInput struct {
	Question string `json:"question" validate:"required,min=1,max=200"`
	Answer   string `json:"answer" validate:"required,min=1,max=200"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email             string                  `json:"email" validate:"required,email"`
	Password          string                  `json:"password" validate:"required"`
	FullName          string                  `json:"full_name" validate:"required,min=1,max=100"`
	Phone             string                  `json:"phone" validate:"omitempty,max=20"`
	SecurityQuestions []SecurityQuestionInput `json:"security_questions" validate:"omitempty,max=5,dive"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResumeMFARequest carries the pending token and the submitted code
type ResumeMFARequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,min=6,max=6"`
}

// RequestLoginCodeRequest asks for an emailed one-time code
type RequestLoginCodeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

// ResumeChallengeRequest carries the pending token and the answers
type ResumeChallengeRequest struct {
	PendingToken string   `json:"pending_token" validate:"required"`
	Answers      []string `json:"answers" validate:"required,min=1,dive,required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Response DTOs

// LoginResponse is the wire form of a login or resume outcome
type LoginResponse struct {
	Status        string                     `json:"status"`
	Token         string                     `json:"token,omitempty"`
	Identity      *services.IdentityResponse `json:"identity,omitempty"`
	ChallengeKind string                     `json:"challenge_kind,omitempty"`
	PendingToken  string                     `json:"pending_token,omitempty"`
	Questions     []string                   `json:"questions,omitempty"`
	LockedUntil   *time.Time                 `json:"locked_until,omitempty"`
}

func loginResponseFrom(result *services.LoginResult) *LoginResponse {
	return &LoginResponse{
		Status:        string(result.Status),
		Token:         result.SessionToken,
		Identity:      result.Identity,
		ChallengeKind: result.ChallengeKind,
		PendingToken:  result.PendingToken,
		Questions:     result.Questions,
		LockedUntil:   result.LockedUntil,
	}
}

// writeLoginResult maps a LoginResult onto the wire. A locked account is a
// 403 with the account_locked code so clients can branch without parsing
// the message text.
func writeLoginResult(w http.ResponseWriter, result *services.LoginResult) {
	resp := loginResponseFrom(result)

	w.Header().Set("Content-Type", "application/json")
	if result.Status == services.LoginLocked {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(struct {
			Error string `json:"error"`
			*LoginResponse
		}{Error: "account_locked", LoginResponse: resp})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// writeAuthError maps flow errors onto the shared error envelope.
func writeAuthError(w http.ResponseWriter, err error) {
	var validationErr *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &validationErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
			"Password does not meet the policy", validationErr.Error())
	case errors.Is(err, models.ErrPasswordExpired):
		pkghttp.WriteError(w, http.StatusForbidden, "password_expired",
			"Password has expired and must be changed")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteUnauthorized(w, "Invalid or expired token")
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrChallengeFailed):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Unable to complete registration")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Register handles account registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	questions := make([]services.RegistrationQuestion, 0, len(req.SecurityQuestions))
	for _, q := range req.SecurityQuestions {
		questions = append(questions, services.RegistrationQuestion{
			Question: q.Question,
			Answer:   q.Answer,
		})
	}

	identity, err := h.service.Register(r.Context(), req.Email, req.Password, req.FullName, req.Phone, questions)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(identity)
}

// Login handles a password submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeLoginResult(w, result)
}

// ResumeMFA finishes a login pending an MFA challenge
func (h *AuthHandler) ResumeMFA(w http.ResponseWriter, r *http.Request) {
	var req ResumeMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ResumeMFA(r.Context(), req.PendingToken, req.Code)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeLoginResult(w, result)
}

// RequestLoginCode emails a one-time code for a pending MFA login
func (h *AuthHandler) RequestLoginCode(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestLoginCode(r.Context(), req.PendingToken); err != nil {
		writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "A sign-in code has been sent to your email",
	})
}

// ResumeChallenge finishes a login pending a security-question challenge
func (h *AuthHandler) ResumeChallenge(w http.ResponseWriter, r *http.Request) {
	var req ResumeChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ResumeSecurityChallenge(r.Context(), req.PendingToken, req.Answers)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeLoginResult(w, result)
}

// ChangePassword rotates the authenticated account's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), session.CredentialID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Password changed successfully",
	})
}
