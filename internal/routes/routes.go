package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/handlers"
	"github.com/mansijimba/mediqueue-auth/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	unlockHandler *handlers.UnlockHandler,
	tokenManager *auth.TokenManager,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/mfa/resume", authHandler.ResumeMFA)
		r.Post("/auth/mfa/email-code", authHandler.RequestLoginCode)
		r.Post("/auth/challenge/resume", authHandler.ResumeChallenge)
		r.Post("/auth/unlock/request", unlockHandler.RequestUnlock)
		r.Post("/auth/unlock/confirm", unlockHandler.ConfirmUnlock)
	})

	// Protected routes - session token required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(tokenManager))

		r.Post("/auth/password/change", authHandler.ChangePassword)
		r.Post("/auth/mfa/setup", mfaHandler.Setup)
		r.Post("/auth/mfa/confirm", mfaHandler.Confirm)
		r.Post("/auth/mfa/disable", mfaHandler.Disable)
	})
}
