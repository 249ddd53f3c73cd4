package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender_watch/internal/domain/tender"
)

type fakeSource struct {
	mu        sync.Mutex
	tenders   []*tender.Tender
	err       error
	countries []string
	block     chan struct{}
}

func (f *fakeSource) ActiveTenders(_ context.Context, country string) ([]*tender.Tender, error) {
	f.mu.Lock()
	f.countries = append(f.countries, country)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.tenders, f.err
}

type fakeRepo struct {
	tender.Repository

	inserted int
	updated  int
	err      error
	upserted []*tender.Tender
}

func (f *fakeRepo) Upsert(_ context.Context, tenders []*tender.Tender) (int, int, error) {
	f.upserted = tenders
	return f.inserted, f.updated, f.err
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func someTenders(n int) []*tender.Tender {
	out := make([]*tender.Tender, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &tender.Tender{NoticeID: string(rune('a' + i))})
	}
	return out
}

func TestSyncSuccess(t *testing.T) {
	source := &fakeSource{tenders: someTenders(5)}
	repo := &fakeRepo{inserted: 3, updated: 2}
	svc := NewSyncService(source, repo, "FRA", testLogger())

	status, err := svc.Sync(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, tender.SyncCompleted, status.Status)
	assert.Equal(t, 5, status.TotalSynced)
	assert.Equal(t, 3, status.NewNotices)
	require.NotNil(t, status.LastSync)
	assert.WithinDuration(t, time.Now(), *status.LastSync, time.Minute)
	assert.Empty(t, status.ErrorMessage)

	assert.Equal(t, []string{"FRA"}, source.countries)
	assert.Len(t, repo.upserted, 5)
}

func TestSyncExplicitCountry(t *testing.T) {
	source := &fakeSource{}
	svc := NewSyncService(source, &fakeRepo{}, "FRA", testLogger())

	_, err := svc.Sync(context.Background(), "DEU")
	require.NoError(t, err)
	assert.Equal(t, []string{"DEU"}, source.countries)
}

func TestSyncUpstreamFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	svc := NewSyncService(source, &fakeRepo{}, "FRA", testLogger())

	status, err := svc.Sync(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, tender.SyncError, status.Status)
	assert.Contains(t, status.ErrorMessage, "upstream fetch failed")
	assert.Nil(t, status.LastSync)
}

func TestSyncStorageFailure(t *testing.T) {
	source := &fakeSource{tenders: someTenders(2)}
	repo := &fakeRepo{err: errors.New("db down")}
	svc := NewSyncService(source, repo, "FRA", testLogger())

	status, err := svc.Sync(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, tender.SyncError, status.Status)
	assert.Contains(t, status.ErrorMessage, "storage write failed")
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{block: block}
	svc := NewSyncService(source, &fakeRepo{}, "FRA", testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Sync(context.Background(), "")
	}()

	// Wait until the first run holds the gate.
	require.Eventually(t, func() bool {
		return svc.Status().Status == tender.SyncRunning
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Sync(context.Background(), "")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(block)
	<-done
	assert.Equal(t, tender.SyncCompleted, svc.Status().Status)
}

func TestSyncCallbacksRun(t *testing.T) {
	source := &fakeSource{tenders: someTenders(3)}
	repo := &fakeRepo{inserted: 2, updated: 1}
	svc := NewSyncService(source, repo, "FRA", testLogger())

	var gotInserted, gotUpdated int
	svc.OnSyncComplete(func(inserted, updated int) error {
		gotInserted, gotUpdated = inserted, updated
		return nil
	})

	_, err := svc.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, gotInserted)
	assert.Equal(t, 1, gotUpdated)
}

func TestSyncFailingCallbackIsSwallowed(t *testing.T) {
	source := &fakeSource{tenders: someTenders(1)}
	svc := NewSyncService(source, &fakeRepo{inserted: 1}, "FRA", testLogger())

	svc.OnSyncComplete(func(int, int) error {
		return errors.New("notifier offline")
	})

	status, err := svc.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, tender.SyncCompleted, status.Status)
}

func TestSyncNotStartedStatusIsIdle(t *testing.T) {
	svc := NewSyncService(&fakeSource{}, &fakeRepo{}, "FRA", testLogger())
	assert.Equal(t, tender.SyncIdle, svc.Status().Status)
}
