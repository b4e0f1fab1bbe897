package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/auth"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/pkg/logger"
)

// sessionLogRetention bounds how long completed exploratory sessions keep
// their raw logs.
const sessionLogRetention = 180 * 24 * time.Hour

// Cleaner runs periodic background jobs: pruning dead auth sessions and
// trimming logs of long-completed exploratory sessions.
type Cleaner struct {
	db       *gorm.DB
	sessions *auth.SessionService
	cron     *cron.Cron
	now      func() time.Time
}

// NewCleaner constructs a Cleaner.
func NewCleaner(db *gorm.DB, sessions *auth.SessionService) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("cleaner: db is required")
	}
	if sessions == nil {
		return nil, errors.New("cleaner: session service is required")
	}
	return &Cleaner{
		db:       db,
		sessions: sessions,
		cron:     cron.New(),
		now:      time.Now,
	}, nil
}

// Start schedules the jobs and begins running them.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc("@hourly", func() {
		if err := c.pruneAuthSessions(context.Background()); err != nil {
			logger.Error("maintenance: prune auth sessions", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc("@daily", func() {
		if err := c.trimSessionLogs(context.Background()); err != nil {
			logger.Error("maintenance: trim session logs", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for in-flight jobs.
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RunOnce executes every job immediately. Used at startup and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	return multierr.Combine(
		c.pruneAuthSessions(ctx),
		c.trimSessionLogs(ctx),
	)
}

func (c *Cleaner) pruneAuthSessions(ctx context.Context) error {
	removed, err := c.sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Info("maintenance: pruned auth sessions", zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) trimSessionLogs(ctx context.Context) error {
	cutoff := c.now().Add(-sessionLogRetention)

	var sessionIDs []string
	err := c.db.WithContext(ctx).Model(&models.TestSession{}).
		Where("status = ? AND ended_at < ?", models.SessionCompleted, cutoff).
		Pluck("id", &sessionIDs).Error
	if err != nil {
		return err
	}
	if len(sessionIDs) == 0 {
		return nil
	}

	res := c.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Delete(&models.SessionLog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info("maintenance: trimmed session logs",
			zap.Int64("removed", res.RowsAffected),
			zap.Int("sessions", len(sessionIDs)),
		)
	}
	return nil
}
