package models

import (
	"time"
)

// MFAStatus is the TOTP enrollment state of a credential.
type MFAStatus string

const (
	MFADisabled  MFAStatus = "disabled"
	MFAEnrolling MFAStatus = "enrolling"
	MFAEnabled   MFAStatus = "enabled"
)

// MFAState is a tagged enrollment state: TempSecret is populated only while
// enrolling, Secret only once enrollment has been confirmed.
type MFAState struct {
	Status     MFAStatus
	Secret     string
	TempSecret string
}

// LockStatus is the lock state of a credential.
type LockStatus string

const (
	Unlocked LockStatus = "unlocked"
	Locked   LockStatus = "locked"
)

// LockState is a tagged lock state. Until, UnlockTokenHash and
// UnlockTokenExpiry are populated only while Status is Locked, which rules
// out the unlocked-with-a-deadline combinations the old schema allowed.
type LockState struct {
	Status            LockStatus
	Until             *time.Time
	UnlockTokenHash   string
	UnlockTokenExpiry *time.Time
}

// Active reports whether the lock is still in force at the given time.
func (l LockState) Active(now time.Time) bool {
	return l.Status == Locked && l.Until != nil && now.Before(*l.Until)
}

// Expired reports whether a lock was set but its window has passed.
func (l LockState) Expired(now time.Time) bool {
	return l.Status == Locked && (l.Until == nil || !now.Before(*l.Until))
}

// UnlockTokenValid reports whether an unexpired unlock token is outstanding.
func (l LockState) UnlockTokenValid(now time.Time) bool {
	return l.UnlockTokenHash != "" && l.UnlockTokenExpiry != nil && now.Before(*l.UnlockTokenExpiry)
}

// SecurityQuestion pairs a question with the bcrypt hash of its answer.
// Answers are never stored in clear form.
type SecurityQuestion struct {
	Question   string `json:"question"`
	AnswerHash string `json:"answer_hash"`
}

// PasswordRecord is a retired password hash kept for reuse checks.
type PasswordRecord struct {
	Hash      string    `json:"hash"`
	ChangedAt time.Time `json:"changed_at"`
}

// Credential is the durable identity record this service authenticates.
type Credential struct {
	ID       string
	Email    string
	FullName string
	Phone    string

	PasswordHash      string
	PasswordHistory   []PasswordRecord
	PasswordChangedAt time.Time
	PasswordExpiry    time.Time

	FailedLoginAttempts int
	Lock                LockState

	SecurityQuestions []SecurityQuestion
	MFA               MFAState

	// Transient one-time code for a single login, bcrypt hash at rest.
	EmailOTPHash   string
	EmailOTPExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasswordExpired reports whether the password is past its rotation deadline.
func (c *Credential) PasswordExpired(now time.Time) bool {
	return !c.PasswordExpiry.IsZero() && now.After(c.PasswordExpiry)
}

// HasSecurityQuestions reports whether the self-unlock question path is configured.
func (c *Credential) HasSecurityQuestions() bool {
	return len(c.SecurityQuestions) > 0
}

// QuestionTexts returns the question prompts without their answer hashes.
func (c *Credential) QuestionTexts() []string {
	texts := make([]string, 0, len(c.SecurityQuestions))
	for _, q := range c.SecurityQuestions {
		texts = append(texts, q.Question)
	}
	return texts
}

// EmailOTPValid reports whether an unexpired one-time code is outstanding.
func (c *Credential) EmailOTPValid(now time.Time) bool {
	return c.EmailOTPHash != "" && c.EmailOTPExpiry != nil && now.Before(*c.EmailOTPExpiry)
}

// ClearEmailOTP removes the one-time code after a successful or expired use.
func (c *Credential) ClearEmailOTP() {
	c.EmailOTPHash = ""
	c.EmailOTPExpiry = nil
}

// ClearLock resets the credential to the unlocked state and zeroes the
// failure counter. Used when a lock expires or an unlock flow succeeds.
func (c *Credential) ClearLock() {
	c.Lock = LockState{Status: Unlocked}
	c.FailedLoginAttempts = 0
}
