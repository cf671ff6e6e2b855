// Package lockout implements the tiered failed-login policy as a pure
// decision table. It performs no I/O; callers apply the returned decisions
// to the credential record.
package lockout

import (
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/models"
)

// Config holds the policy thresholds and windows.
type Config struct {
	ChallengeThreshold int           // failures at which a question challenge is offered
	MaxAttempts        int           // failures at which the account locks
	LockDuration       time.Duration // how long a lock lasts
	UnlockTokenTTL     time.Duration // validity of the out-of-band unlock token
}

// DefaultConfig returns the production thresholds: challenge at 3 failures,
// lock at 5 for 30 minutes, unlock token valid 1 hour.
func DefaultConfig() Config {
	return Config{
		ChallengeThreshold: 3,
		MaxAttempts:        5,
		LockDuration:       30 * time.Minute,
		UnlockTokenTTL:     1 * time.Hour,
	}
}

// Gate is the pre-password evaluation of existing lock state.
type Gate int

const (
	// GateOpen: not locked, evaluate the attempt normally.
	GateOpen Gate = iota
	// GateLocked: an active lock is in force, short-circuit.
	GateLocked
	// GateExpired: a lock was set but its window has passed; the caller
	// must clear lock state and the failure counter before proceeding.
	GateExpired
)

// EvaluateLock implements the first two rows of the decision table.
func EvaluateLock(lock models.LockState, now time.Time) Gate {
	switch {
	case lock.Active(now):
		return GateLocked
	case lock.Expired(now):
		return GateExpired
	default:
		return GateOpen
	}
}

// Decision is the outcome for a failed password check.
type Decision int

const (
	// Reject: generic invalid-credentials response, counter persisted.
	Reject Decision = iota
	// Challenge: offer a short-lived security-question challenge instead
	// of rejecting outright.
	Challenge
	// Lock: set the lock and issue an out-of-band unlock token.
	Lock
)

// OnPasswordFailure returns the decision for a failed password check.
// failedAttempts is the counter value with this failure already counted.
func (c Config) OnPasswordFailure(failedAttempts int) Decision {
	switch {
	case failedAttempts >= c.MaxAttempts:
		return Lock
	case failedAttempts >= c.ChallengeThreshold:
		return Challenge
	default:
		return Reject
	}
}

// LockUntil returns the lock deadline for a lock applied now.
func (c Config) LockUntil(now time.Time) time.Time {
	return now.Add(c.LockDuration)
}

// UnlockTokenExpiry returns the unlock-token deadline for a token issued now.
func (c Config) UnlockTokenExpiry(now time.Time) time.Time {
	return now.Add(c.UnlockTokenTTL)
}
