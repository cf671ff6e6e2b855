package lockout

import (
	"testing"
	"time"

	"github.com/mansijimba/mediqueue-auth/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateLock(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name string
		lock models.LockState
		want Gate
	}{
		{
			name: "unlocked",
			lock: models.LockState{Status: models.Unlocked},
			want: GateOpen,
		},
		{
			name: "active lock",
			lock: models.LockState{Status: models.Locked, Until: &future},
			want: GateLocked,
		},
		{
			name: "expired lock",
			lock: models.LockState{Status: models.Locked, Until: &past},
			want: GateExpired,
		},
		{
			name: "locked without deadline treated as expired",
			lock: models.LockState{Status: models.Locked},
			want: GateExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateLock(tt.lock, now))
		})
	}
}

func TestEvaluateLock_ExactDeadlineIsExpired(t *testing.T) {
	now := time.Now()
	assert.Equal(t, GateExpired, EvaluateLock(models.LockState{Status: models.Locked, Until: &now}, now))
}

func TestOnPasswordFailure_Tiers(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		attempts int
		want     Decision
	}{
		{1, Reject},
		{2, Reject},
		{3, Challenge},
		{4, Challenge},
		{5, Lock},
		{6, Lock},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.OnPasswordFailure(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestLockWindows(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()

	assert.Equal(t, now.Add(30*time.Minute), cfg.LockUntil(now))
	assert.Equal(t, now.Add(1*time.Hour), cfg.UnlockTokenExpiry(now))
	assert.True(t, cfg.UnlockTokenExpiry(now).After(cfg.LockUntil(now)))
}
