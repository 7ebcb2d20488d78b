package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

type fakeTransitioner struct {
	pending   []orderRef
	findErr   error
	cancelErr map[uuid.UUID]error
	cancelled []uuid.UUID
	reasons   []string
	cutoff    time.Time
}

func (f *fakeTransitioner) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]orderRef, error) {
	f.cutoff = cutoff
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.pending, nil
}

func (f *fakeTransitioner) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	if err, ok := f.cancelErr[orderID]; ok {
		return err
	}
	f.cancelled = append(f.cancelled, orderID)
	f.reasons = append(f.reasons, reason)
	return nil
}

func newExpiryJobTest(transitioner *fakeTransitioner, ttl time.Duration, now time.Time) *orderExpiryJob {
	return &orderExpiryJob{
		logg:       logger.New(logger.Options{ServiceName: "cron-test"}),
		orders:     transitioner,
		pendingTTL: ttl,
		now:        func() time.Time { return now },
	}
}

func TestOrderExpiryJobCancelsStalePendingOrders(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	staleA := orderRef{ID: uuid.New(), CreatedAt: now.Add(-48 * time.Hour)}
	staleB := orderRef{ID: uuid.New(), CreatedAt: now.Add(-30 * time.Hour)}
	transitioner := &fakeTransitioner{pending: []orderRef{staleA, staleB}}
	job := newExpiryJobTest(transitioner, 24*time.Hour, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCutoff := now.Add(-24 * time.Hour)
	if !transitioner.cutoff.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %s, got %s", wantCutoff, transitioner.cutoff)
	}
	if len(transitioner.cancelled) != 2 {
		t.Fatalf("expected 2 cancellations, got %d", len(transitioner.cancelled))
	}
	for _, reason := range transitioner.reasons {
		if reason != expiredOrderReason {
			t.Fatalf("unexpected cancel reason: %q", reason)
		}
	}
}

func TestOrderExpiryJobToleratesAdvancedOrders(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	advanced := orderRef{ID: uuid.New(), CreatedAt: now.Add(-48 * time.Hour)}
	stale := orderRef{ID: uuid.New(), CreatedAt: now.Add(-30 * time.Hour)}
	transitioner := &fakeTransitioner{
		pending: []orderRef{advanced, stale},
		cancelErr: map[uuid.UUID]error{
			advanced.ID: pkgerrors.New(pkgerrors.CodeStateConflict, "order already in_queue"),
		},
	}
	job := newExpiryJobTest(transitioner, 24*time.Hour, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(transitioner.cancelled) != 1 {
		t.Fatalf("expected 1 cancellation, got %d", len(transitioner.cancelled))
	}
	if transitioner.cancelled[0] != stale.ID {
		t.Fatalf("cancelled wrong order: %s", transitioner.cancelled[0])
	}
}

func TestOrderExpiryJobCollectsPerOrderFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	broken := orderRef{ID: uuid.New(), CreatedAt: now.Add(-48 * time.Hour)}
	stale := orderRef{ID: uuid.New(), CreatedAt: now.Add(-30 * time.Hour)}
	transitioner := &fakeTransitioner{
		pending: []orderRef{broken, stale},
		cancelErr: map[uuid.UUID]error{
			broken.ID: errors.New("db gone"),
		},
	}
	job := newExpiryJobTest(transitioner, 24*time.Hour, now)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failed cancellation")
	}
	if !strings.Contains(err.Error(), broken.ID.String()) {
		t.Fatalf("expected error to name the failing order, got %v", err)
	}
	if len(transitioner.cancelled) != 1 {
		t.Fatalf("expected healthy order still cancelled, got %d", len(transitioner.cancelled))
	}
}

func TestNewOrderExpiryJobValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Orders: nil, Logger: logg, PendingTTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing orders service")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: nil, PendingTTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing logger")
	}
}
