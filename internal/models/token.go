package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token type claims
const (
	TokenTypeSession   = "session"
	TokenTypeChallenge = "challenge"
)

// Challenge kinds carried in pending-challenge tokens
const (
	ChallengeKindMFA               = "mfa"
	ChallengeKindSecurityQuestions = "securityChallenge"
)

// TokenClaims is the claim set for both signed token classes. Session
// tokens carry identity fields; pending-challenge tokens carry the
// challenge kind and, for question challenges, the indexes of the
// questions that were presented.
type TokenClaims struct {
	Type         string `json:"type"`
	CredentialID string `json:"credential_id"`
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name,omitempty"`

	ChallengeKind   string `json:"challenge_kind,omitempty"`
	QuestionIndexes []int  `json:"question_indexes,omitempty"`

	jwt.RegisteredClaims
}
