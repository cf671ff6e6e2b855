package background

import (
	"context"
	"log/slog"
	"time"
)

// TransientCleaner clears expired short-lived authentication state.
type TransientCleaner interface {
	ClearExpiredTransients(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically clears expired email one-time codes and
// unlock tokens from the credential store.
type CleanupManager struct {
	repo     TransientCleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(repo TransientCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		repo:     repo,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup clears expired transient state from the credential store
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsAffected, err := cm.repo.ClearExpiredTransients(cleanupCtx, time.Now())
	if err != nil {
		cm.logger.Error("failed to clear expired transient state", slog.Any("error", err))
		return
	}

	if rowsAffected > 0 {
		cm.logger.Info("transient state cleanup completed", slog.Int64("rows_affected", rowsAffected))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
