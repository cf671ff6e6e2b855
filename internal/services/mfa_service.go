package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/models"
	pkgauth "github.com/mansijimba/mediqueue-auth/pkg/auth"
	pkglogger "github.com/mansijimba/mediqueue-auth/pkg/logger"
)

// MFAService manages the TOTP enrollment lifecycle. A secret lives in the
// temp slot while enrolling and is promoted only after the holder proves
// possession with a valid code.
type MFAService struct {
	repo   CredentialRepository
	totp   *auth.TOTPManager
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewMFAService creates a new MFAService
func NewMFAService(repo CredentialRepository, totp *auth.TOTPManager, logger *slog.Logger, audit *pkglogger.AuditLogger) *MFAService {
	return &MFAService{
		repo:   repo,
		totp:   totp,
		logger: logger,
		audit:  audit,
	}
}

// MFASetupResponse carries the enrollment material for the authenticator app.
type MFASetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
}

// Setup begins TOTP enrollment. Restarting while already enrolling replaces
// the pending secret; an already-enabled factor must be disabled first.
func (s *MFAService) Setup(ctx context.Context, credentialID string) (*MFASetupResponse, error) {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load credential for MFA setup", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if cred.MFA.Status == models.MFAEnabled {
		return nil, models.ErrConflict
	}

	secret, provisioningURI, err := s.totp.GenerateSecret(cred.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	qrCode, err := s.totp.QRCodeDataURL(provisioningURI)
	if err != nil {
		s.logger.Error("failed to render QR code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	cred.MFA = models.MFAState{
		Status:     models.MFAEnrolling,
		TempSecret: secret,
	}

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to persist MFA enrollment",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogAccountAction("mfa_setup_started", cred.ID, "", nil)

	return &MFASetupResponse{
		Secret:          secret,
		ProvisioningURI: provisioningURI,
		QRCode:          qrCode,
	}, nil
}

// Confirm completes enrollment by validating a code against the pending
// secret. Success promotes the secret and enables the factor.
func (s *MFAService) Confirm(ctx context.Context, credentialID, code string) error {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load credential for MFA confirm", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if cred.MFA.Status != models.MFAEnrolling || cred.MFA.TempSecret == "" {
		return models.ErrBadRequest
	}

	if !s.totp.Validate(code, cred.MFA.TempSecret) {
		s.audit.LogAccountAction("mfa_confirm_failed", cred.ID, "", nil)
		return models.ErrChallengeFailed
	}

	cred.MFA = models.MFAState{
		Status: models.MFAEnabled,
		Secret: cred.MFA.TempSecret,
	}

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to enable MFA",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA enabled", slog.String("credential_id", cred.ID))
	s.audit.LogAccountAction("mfa_enabled", cred.ID, "", nil)
	return nil
}

// Disable turns the factor off after re-proving the password. Both the
// active and any pending secret are discarded.
func (s *MFAService) Disable(ctx context.Context, credentialID, password string) error {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load credential for MFA disable", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if pkgauth.ComparePassword(cred.PasswordHash, password) != nil {
		s.audit.LogAccountAction("mfa_disable_failed", cred.ID, "", nil)
		return models.ErrUnauthorized
	}

	cred.MFA = models.MFAState{Status: models.MFADisabled}

	if _, err := s.repo.Update(ctx, cred); err != nil {
		s.logger.Error("failed to disable MFA",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA disabled", slog.String("credential_id", cred.ID))
	s.audit.LogAccountAction("mfa_disabled", cred.ID, "", nil)
	return nil
}
