package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tender_watch/internal/app"
)

// syncTimeout bounds one scheduled run; a sync over the full active set
// finishes well within this at expected volumes.
const syncTimeout = 15 * time.Minute

// SyncScheduler triggers a daily tender synchronization at a configured
// time. Errors from the scheduled run are logged and swallowed so the
// periodic path can never crash the host process.
type SyncScheduler struct {
	cronEngine  *cron.Cron
	syncService *app.SyncService
	logger      *logrus.Entry
	enabled     bool
	cronSpec    string
}

func NewSyncScheduler(syncService *app.SyncService, logger *logrus.Entry, enabled bool, hour, minute int) *SyncScheduler {
	return &SyncScheduler{
		cronEngine:  cron.New(cron.WithLocation(time.Local)),
		syncService: syncService,
		logger:      logger,
		enabled:     enabled,
		cronSpec:    fmt.Sprintf("%d %d * * *", minute, hour),
	}
}

func (s *SyncScheduler) Start() error {
	if !s.enabled {
		s.logger.Info("sync scheduler disabled in configuration")
		return nil
	}

	_, err := s.cronEngine.AddFunc(s.cronSpec, s.runScheduledSync)
	if err != nil {
		return fmt.Errorf("could not add daily sync cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron", s.cronSpec).Info("sync scheduler started")
	return nil
}

func (s *SyncScheduler) runScheduledSync() {
	s.logger.Info("cron job triggered for daily tender sync")
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	// No country override: the scheduled run always syncs the default.
	if _, err := s.syncService.Sync(ctx, ""); err != nil {
		if errors.Is(err, app.ErrSyncInProgress) {
			s.logger.Warn("scheduled sync skipped, another sync is running")
			return
		}
		s.logger.Errorf("scheduled sync failed: %v", err)
	}
}

func (s *SyncScheduler) Stop() {
	s.logger.Info("stopping sync scheduler")
	ctx := s.cronEngine.Stop() // waits for a running job before resolving
	<-ctx.Done()
	s.logger.Info("sync scheduler stopped")
}
