package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tender_watch/internal/domain/tender"
)

// ErrSyncInProgress reports a sync trigger that arrived while another run
// was active. It is a conflict, not a failure: the running sync's status
// is left untouched and the trigger is not queued.
var ErrSyncInProgress = errors.New("a synchronization is already running")

// ActiveTenderSource supplies the current active tenders for a country
// from the upstream API.
type ActiveTenderSource interface {
	ActiveTenders(ctx context.Context, country string) ([]*tender.Tender, error)
}

// SyncCallback is invoked after a successful sync with the insert and
// update counts. A failing callback is logged and swallowed; it never
// changes the sync outcome.
type SyncCallback func(inserted, updated int) error

// SyncService orchestrates one synchronization run: fetch the active
// tenders upstream, upsert them, track the run status. At most one sync
// runs per process at a time.
type SyncService struct {
	source         ActiveTenderSource
	repo           tender.Repository
	defaultCountry string
	log            *logrus.Entry

	mu        sync.Mutex
	status    tender.SyncStatus
	callbacks []SyncCallback
}

func NewSyncService(source ActiveTenderSource, repo tender.Repository, defaultCountry string, log *logrus.Entry) *SyncService {
	return &SyncService{
		source:         source,
		repo:           repo,
		defaultCountry: defaultCountry,
		log:            log,
		status:         tender.SyncStatus{Status: tender.SyncIdle},
	}
}

// OnSyncComplete registers a callback invoked after each successful sync.
func (s *SyncService) OnSyncComplete(cb SyncCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Status returns a snapshot of the last (or current) run.
func (s *SyncService) Status() tender.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Sync fetches all active tenders for the country (configured default when
// empty) and commits them to the repository. Returns ErrSyncInProgress
// when another run holds the gate. Upstream and storage errors are
// recorded in the status and returned to the caller.
func (s *SyncService) Sync(ctx context.Context, country string) (tender.SyncStatus, error) {
	if country == "" {
		country = s.defaultCountry
	}
	if err := s.begin(); err != nil {
		return s.Status(), err
	}

	s.log.WithField("country", country).Info("starting tender sync")
	start := time.Now()

	tenders, err := s.source.ActiveTenders(ctx, country)
	if err != nil {
		s.fail(fmt.Sprintf("upstream fetch failed: %v", err))
		s.log.WithField("country", country).Errorf("tender sync failed: %v", err)
		return s.Status(), err
	}

	inserted, updated, err := s.repo.Upsert(ctx, tenders)
	if err != nil {
		s.fail(fmt.Sprintf("storage write failed: %v", err))
		s.log.WithField("country", country).Errorf("tender sync failed: %v", err)
		return s.Status(), err
	}

	s.complete(len(tenders), inserted)
	s.log.WithFields(logrus.Fields{
		"country":  country,
		"total":    len(tenders),
		"inserted": inserted,
		"updated":  updated,
		"elapsed":  time.Since(start).String(),
	}).Info("tender sync completed")

	for _, cb := range s.snapshotCallbacks() {
		if err := cb(inserted, updated); err != nil {
			s.log.Warnf("sync callback failed: %v", err)
		}
	}

	return s.Status(), nil
}

// begin claims the single-flight gate.
func (s *SyncService) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Status == tender.SyncRunning {
		return ErrSyncInProgress
	}
	s.status = tender.SyncStatus{Status: tender.SyncRunning}
	return nil
}

func (s *SyncService) complete(total, inserted int) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = tender.SyncStatus{
		LastSync:    &now,
		TotalSynced: total,
		NewNotices:  inserted,
		Status:      tender.SyncCompleted,
	}
}

func (s *SyncService) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = tender.SyncStatus{
		Status:       tender.SyncError,
		ErrorMessage: message,
	}
}

func (s *SyncService) snapshotCallbacks() []SyncCallback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SyncCallback(nil), s.callbacks...)
}
