package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost      = 12
	MinPasswordLen  = 8
	MaxPasswordLen  = 128
	OpaqueTokenLen  = 32 // 256 bits
	PasswordHistory = 5  // how many retired hashes are checked for reuse
)

// Symbols accepted as the "special character" class.
const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// PasswordValidationError reports every violated strength rule so the
// caller can render all problems at once.
type PasswordValidationError struct {
	Violations []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Violations, "; password ")
}

// ValidatePasswordStrength checks a candidate password against the policy.
// It returns nil when the password is acceptable, or a
// *PasswordValidationError listing every violated rule.
func ValidatePasswordStrength(password string) error {
	if password == "" {
		return &PasswordValidationError{Violations: []string{"is required"}}
	}

	violations := make([]string, 0)

	if len(password) < MinPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at most %d characters long", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one number")
	}
	if !hasSymbol {
		violations = append(violations, "must contain at least one special character")
	}

	if len(violations) > 0 {
		return &PasswordValidationError{Violations: violations}
	}

	return nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// MatchesAnyHash reports whether the candidate matches any of the given
// bcrypt hashes. Used for the last-N password reuse check.
func MatchesAnyHash(candidate string, hashes []string) bool {
	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(candidate)) == nil {
			return true
		}
	}
	return false
}

// GenerateOpaqueToken returns a URL-safe random token for out-of-band
// delivery (unlock links). Uses crypto/rand; the stored form is a hash.
func GenerateOpaqueToken() (string, error) {
	bytes := make([]byte, OpaqueTokenLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
