package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mansijimba/mediqueue-auth/internal/auth"
	"github.com/mansijimba/mediqueue-auth/internal/background"
	"github.com/mansijimba/mediqueue-auth/internal/config"
	"github.com/mansijimba/mediqueue-auth/internal/database"
	"github.com/mansijimba/mediqueue-auth/internal/handlers"
	"github.com/mansijimba/mediqueue-auth/internal/lockout"
	middlewareCustom "github.com/mansijimba/mediqueue-auth/internal/middleware"
	"github.com/mansijimba/mediqueue-auth/internal/repositories"
	"github.com/mansijimba/mediqueue-auth/internal/routes"
	"github.com/mansijimba/mediqueue-auth/internal/services"
	pkglogger "github.com/mansijimba/mediqueue-auth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	credentialRepo := repositories.NewCredentialRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(credentialRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token and TOTP managers
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.SessionTokenExpiry,
		cfg.Auth.ChallengeTokenExpiry,
	)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Lockout policy
	lockoutPolicy := lockout.Config{
		ChallengeThreshold: cfg.Auth.ChallengeThreshold,
		MaxAttempts:        cfg.Auth.MaxFailedAttempts,
		LockDuration:       cfg.Auth.LockDuration,
		UnlockTokenTTL:     cfg.Auth.UnlockTokenExpiry,
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	})

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.UnlockURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	challengeService := services.NewChallengeService(credentialRepo, emailService, logger, cfg.Auth.EmailOTPExpiry)
	authService := services.NewAuthService(
		credentialRepo,
		tokenManager,
		totpManager,
		challengeService,
		emailService,
		lockoutPolicy,
		timingDelay,
		logger,
		auditLogger,
		cfg.Auth.PasswordMaxAge,
	)
	mfaService := services.NewMFAService(credentialRepo, totpManager, logger, auditLogger)
	unlockService := services.NewUnlockService(credentialRepo, emailService, lockoutPolicy, logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	mfaHandler := handlers.NewMFAHandler(mfaService)
	unlockHandler := handlers.NewUnlockHandler(unlockService)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, mfaHandler, unlockHandler, tokenManager, middlewareCustom.DefaultAuthRateLimit())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
