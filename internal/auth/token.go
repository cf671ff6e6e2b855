package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mansijimba/mediqueue-auth/internal/models"
)

// TokenManager issues and verifies the two signed token classes: session
// tokens returned after full authentication, and short-lived
// pending-challenge tokens that carry a multi-step login between requests.
type TokenManager struct {
	secret          string
	sessionExpiry   time.Duration
	challengeExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, sessionExpiry, challengeExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:          secret,
		sessionExpiry:   sessionExpiry,
		challengeExpiry: challengeExpiry,
	}
}

// GenerateSessionToken creates a session token for a fully authenticated
// credential holder.
func (tm *TokenManager) GenerateSessionToken(credentialID, email, fullName string) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:         models.TokenTypeSession,
		CredentialID: credentialID,
		Email:        email,
		FullName:     fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// GenerateChallengeToken creates a pending-challenge token binding a
// half-finished login to the credential that triggered it. For security
// question challenges, questionIndexes records which questions were
// presented so the answer set cannot be swapped on resume.
func (tm *TokenManager) GenerateChallengeToken(credentialID, kind string, questionIndexes []int) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:            models.TokenTypeChallenge,
		CredentialID:    credentialID,
		ChallengeKind:   kind,
		QuestionIndexes: questionIndexes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.challengeExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies signature, expiry and claim shape. Every failure
// collapses to ErrInvalidToken; no partial trust is extended.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrInvalidToken
	}

	if claims.Type == "" || claims.CredentialID == "" {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}

// ValidateSessionToken verifies a token and requires the session type.
func (tm *TokenManager) ValidateSessionToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeSession {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// ValidateChallengeToken verifies a token and requires the challenge type
// and the expected challenge kind.
func (tm *TokenManager) ValidateChallengeToken(tokenString, kind string) (*models.TokenClaims, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeChallenge || claims.ChallengeKind != kind {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}
