package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mansijimba/mediqueue-auth/internal/auth"
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

// SentEmail represents a captured email message
type SentEmail struct {
	To    string
	Kind  string // "unlock" or "login_code"
	Token string
	Code  string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

func (m *MockEmailService) SendUnlockEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentEmails = append(m.SentEmails, SentEmail{To: email, Kind: "unlock", Token: token})
	return nil
}

func (m *MockEmailService) SendLoginCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentEmails = append(m.SentEmails, SentEmail{To: email, Kind: "login_code", Code: code})
	return nil
}

// GetLastEmail returns the most recent email sent
func (m *MockEmailService) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// WaitForEmail polls until an email of the given kind arrives or the timeout
// passes. Mail is dispatched on detached goroutines, so tests must wait.
func (m *MockEmailService) WaitForEmail(kind string, timeout time.Duration) *SentEmail {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		for i := len(m.SentEmails) - 1; i >= 0; i-- {
			if m.SentEmails[i].Kind == kind {
				email := m.SentEmails[i]
				m.mu.Unlock()
				return &email
			}
		}
		m.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
	Config       *config.Config

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-32-characters-long-for-testing",
			SessionTokenExpiry:   7 * 24 * time.Hour,
			ChallengeTokenExpiry: 10 * time.Minute,
			EmailOTPExpiry:       5 * time.Minute,
			PasswordMaxAge:       90 * 24 * time.Hour,
			ChallengeThreshold:   3,
			MaxFailedAttempts:    5,
			LockDuration:         30 * time.Minute,
			UnlockTokenExpiry:    1 * time.Hour,
			TOTPIssuer:           "MediQueueTest",
			CleanupInterval:      1 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
		},
	}

	credentialRepo := repositories.NewCredentialRepository(db)

	mockEmail := &MockEmailService{
		SentEmails: []SentEmail{},
	}

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.SessionTokenExpiry,
		cfg.Auth.ChallengeTokenExpiry,
	)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)

	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutPolicy := lockout.Config{
		ChallengeThreshold: cfg.Auth.ChallengeThreshold,
		MaxAttempts:        cfg.Auth.MaxFailedAttempts,
		LockDuration:       cfg.Auth.LockDuration,
		UnlockTokenTTL:     cfg.Auth.UnlockTokenExpiry,
	}

	// No artificial delay in tests
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	challengeService := services.NewChallengeService(credentialRepo, mockEmail, logger, cfg.Auth.EmailOTPExpiry)
	authService := services.NewAuthService(
		credentialRepo,
		tokenManager,
		totpManager,
		challengeService,
		mockEmail,
		lockoutPolicy,
		timingDelay,
		logger,
		auditLogger,
		cfg.Auth.PasswordMaxAge,
	)
	mfaService := services.NewMFAService(credentialRepo, totpManager, logger, auditLogger)
	unlockService := services.NewUnlockService(credentialRepo, mockEmail, lockoutPolicy, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService)
	mfaHandler := handlers.NewMFAHandler(mfaService)
	unlockHandler := handlers.NewUnlockHandler(unlockService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Generous limit so flow tests can hammer the auth endpoints
	routes.RegisterRoutes(r, authHandler, mfaHandler, unlockHandler, tokenManager,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000})

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
		Config:       cfg,
		logger:       logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, sessionToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + sessionToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
