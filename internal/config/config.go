package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret            string
	SessionTokenExpiry   time.Duration
	ChallengeTokenExpiry time.Duration
	EmailOTPExpiry       time.Duration
	PasswordMaxAge       time.Duration

	ChallengeThreshold int
	MaxFailedAttempts  int
	LockDuration       time.Duration
	UnlockTokenExpiry  time.Duration

	TOTPIssuer      string
	CleanupInterval time.Duration
}

type EmailConfig struct {
	AWSRegion     string
	FromAddress   string
	UnlockURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "mediqueue_auth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			SessionTokenExpiry:   getEnvAsDuration("SESSION_TOKEN_EXPIRY", 7*24*time.Hour),
			ChallengeTokenExpiry: getEnvAsDuration("CHALLENGE_TOKEN_EXPIRY", 10*time.Minute),
			EmailOTPExpiry:       getEnvAsDuration("EMAIL_OTP_EXPIRY", 5*time.Minute),
			PasswordMaxAge:       getEnvAsDuration("PASSWORD_MAX_AGE", 90*24*time.Hour),
			ChallengeThreshold:   getEnvAsInt("LOCKOUT_CHALLENGE_THRESHOLD", 3),
			MaxFailedAttempts:    getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", 5),
			LockDuration:         getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			UnlockTokenExpiry:    getEnvAsDuration("UNLOCK_TOKEN_EXPIRY", 1*time.Hour),
			TOTPIssuer:           getEnv("TOTP_ISSUER", "MediQueue"),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			FromAddress:   getEnv("EMAIL_FROM_ADDRESS", "no-reply@mediqueue.com"),
			UnlockURLBase: getEnv("UNLOCK_URL_BASE", "http://localhost:5050"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := validateLockoutSettings(&cfg.Auth); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// validateLockoutSettings rejects threshold orderings the policy table
// cannot express (challenge tier must sit below the lock tier).
func validateLockoutSettings(auth *AuthConfig) error {
	if auth.ChallengeThreshold < 1 {
		return fmt.Errorf("LOCKOUT_CHALLENGE_THRESHOLD must be at least 1 (got %d)", auth.ChallengeThreshold)
	}
	if auth.MaxFailedAttempts <= auth.ChallengeThreshold {
		return fmt.Errorf("LOCKOUT_MAX_FAILED_ATTEMPTS (%d) must be greater than LOCKOUT_CHALLENGE_THRESHOLD (%d)",
			auth.MaxFailedAttempts, auth.ChallengeThreshold)
	}
	if auth.UnlockTokenExpiry < auth.LockDuration {
		return fmt.Errorf("UNLOCK_TOKEN_EXPIRY (%s) must not be shorter than LOCKOUT_DURATION (%s)",
			auth.UnlockTokenExpiry, auth.LockDuration)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5050",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5050",
		"http://127.0.0.1:5173",
	}
}
