package bookingsvc

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zazh/foxapp/model"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
	"github.com/Zazh/foxapp/service/notify"
	"github.com/Zazh/foxapp/util/clock"
)

var sweepNow = time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC)

// bookingRepoMock covers the sweep's read/transition surface.
type bookingRepoMock struct {
	bookingrepo.Repo

	byIDFn               func(ctx context.Context, id int64) (*model.Booking, error)
	transitionFn         func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error)
	listExpiredPendingFn func(ctx context.Context, now time.Time) ([]model.Booking, error)
	listDueActivationFn  func(ctx context.Context, today time.Time) ([]int64, error)
	listOverdueActiveFn  func(ctx context.Context, today time.Time) ([]bookingrepo.OverdueRow, error)
	listExpiringOnFn     func(ctx context.Context, endDate time.Time) ([]bookingrepo.ReminderRow, error)

	notificationLog map[string]bool
}

func (m *bookingRepoMock) Transition(ctx context.Context, _ *sql.Tx, id int64, from, to model.BookingStatus) (bool, error) {
	return m.transitionFn(ctx, id, from, to)
}

func (m *bookingRepoMock) ListExpiredPending(ctx context.Context, now time.Time) ([]model.Booking, error) {
	if m.listExpiredPendingFn == nil {
		return nil, nil
	}
	return m.listExpiredPendingFn(ctx, now)
}
func (m *bookingRepoMock) ListDueActivation(ctx context.Context, today time.Time) ([]int64, error) {
	if m.listDueActivationFn == nil {
		return nil, nil
	}
	return m.listDueActivationFn(ctx, today)
}
func (m *bookingRepoMock) ListOverdueActive(ctx context.Context, today time.Time) ([]bookingrepo.OverdueRow, error) {
	if m.listOverdueActiveFn == nil {
		return nil, nil
	}
	return m.listOverdueActiveFn(ctx, today)
}
func (m *bookingRepoMock) ListExpiringOn(ctx context.Context, endDate time.Time) ([]bookingrepo.ReminderRow, error) {
	if m.listExpiringOnFn == nil {
		return nil, nil
	}
	return m.listExpiringOnFn(ctx, endDate)
}
func (m *bookingRepoMock) LogNotification(ctx context.Context, bookingID int64, kind string) (bool, error) {
	if m.notificationLog == nil {
		m.notificationLog = map[string]bool{}
	}
	key := fmt.Sprintf("%d/%s", bookingID, kind)
	if m.notificationLog[key] {
		return false, nil
	}
	m.notificationLog[key] = true
	return true, nil
}

type unitRepoMock struct {
	unitrepo.Repo

	released []int64
}

func (m *unitRepoMock) Release(ctx context.Context, unitID int64) error {
	m.released = append(m.released, unitID)
	return nil
}

type dispatcherMock struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *dispatcherMock) Dispatch(_ context.Context, e notify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(br bookingrepo.Repo, ur unitrepo.Repo, d notify.Dispatcher) Reconciler {
	return NewReconciler(br, ur, d, clock.Fixed{T: sweepNow}, testLogger(), []int{7, 3, 1})
}

func TestReconcile_PendingCancelLostRaceNotCounted(t *testing.T) {
	unitID := int64(5)
	br := &bookingRepoMock{
		listExpiredPendingFn: func(ctx context.Context, now time.Time) ([]model.Booking, error) {
			require.Equal(t, sweepNow, now)
			return []model.Booking{
				{ID: 40, StorageUnitID: &unitID},
				{ID: 41}, // pays while the sweep runs
			}, nil
		},
		transitionFn: func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
			require.Equal(t, model.BookingPending, from)
			require.Equal(t, model.BookingCancelled, to)
			return id == 40, nil
		},
	}
	ur := &unitRepoMock{}
	rec := newTestReconciler(br, ur, &dispatcherMock{})

	sum, err := rec.Run(context.Background())
	require.NoError(t, err)

	// Only the booking whose transition actually won is counted, and
	// only its unit is released.
	require.Equal(t, 1, sum.CancelledPending)
	require.Equal(t, []int64{unitID}, ur.released)
}

func TestReconcile_ActivatesDuePaid(t *testing.T) {
	br := &bookingRepoMock{
		listDueActivationFn: func(ctx context.Context, today time.Time) ([]int64, error) {
			require.Equal(t, clock.Date(sweepNow), today)
			return []int64{10, 11}, nil
		},
		transitionFn: func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
			require.Equal(t, model.BookingPaid, from)
			require.Equal(t, model.BookingActive, to)
			return id == 10, nil // 11 lost a concurrent update
		},
	}
	rec := newTestReconciler(br, &unitRepoMock{}, &dispatcherMock{})

	sum, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Activated)
}

func TestReconcile_ExpiresOverdueAndNotifiesOnce(t *testing.T) {
	unitID := int64(7)
	end := clock.Date(sweepNow).AddDate(0, 0, -1) // one day overdue
	br := &bookingRepoMock{
		listOverdueActiveFn: func(ctx context.Context, today time.Time) ([]bookingrepo.OverdueRow, error) {
			return []bookingrepo.OverdueRow{{BookingID: 20, UserID: 3, UnitID: &unitID, EffectiveEnd: end}}, nil
		},
		transitionFn: func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
			require.Equal(t, model.BookingActive, from)
			require.Equal(t, model.BookingExpired, to)
			return true, nil
		},
	}
	ur := &unitRepoMock{}
	d := &dispatcherMock{}
	rec := newTestReconciler(br, ur, d)

	sum, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Expired)
	require.Equal(t, 1, sum.ExpiredNotices)

	// Unit keeps the customer's belongings until staff release it.
	require.Empty(t, ur.released)

	require.Len(t, d.events, 1)
	require.Equal(t, notify.EventBookingExpired, d.events[0].EventType)

	// Second sweep: transition already happened, nothing new.
	br.transitionFn = func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
		return false, nil
	}
	sum, err = rec.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, sum.Expired)
	require.Zero(t, sum.ExpiredNotices)
	require.Len(t, d.events, 1)
}

func TestReconcile_NoExpiredNoticeWhenLongOverdue(t *testing.T) {
	end := clock.Date(sweepNow).AddDate(0, 0, -5)
	br := &bookingRepoMock{
		listOverdueActiveFn: func(ctx context.Context, today time.Time) ([]bookingrepo.OverdueRow, error) {
			return []bookingrepo.OverdueRow{{BookingID: 21, UserID: 3, EffectiveEnd: end}}, nil
		},
		transitionFn: func(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
			return true, nil
		},
	}
	d := &dispatcherMock{}
	rec := newTestReconciler(br, &unitRepoMock{}, d)

	sum, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Expired)
	require.Zero(t, sum.ExpiredNotices)
	require.Empty(t, d.events)
}

func TestReconcile_RemindersDeduped(t *testing.T) {
	br := &bookingRepoMock{
		listExpiringOnFn: func(ctx context.Context, endDate time.Time) ([]bookingrepo.ReminderRow, error) {
			// Only the 3-day bucket has a booking.
			if endDate.Equal(clock.Date(sweepNow).AddDate(0, 0, 3)) {
				return []bookingrepo.ReminderRow{{BookingID: 30, UserID: 4, EndDate: endDate}}, nil
			}
			return nil, nil
		},
	}
	d := &dispatcherMock{}
	rec := newTestReconciler(br, &unitRepoMock{}, d)

	sum, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.RemindersSent)
	require.Len(t, d.events, 1)
	require.Equal(t, notify.EventBookingExpiring, d.events[0].EventType)
	require.Equal(t, 3, d.events[0].Payload["days_left"])

	// Same day, second sweep: the notification log already holds the row.
	sum, err = rec.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, sum.RemindersSent)
	require.Len(t, d.events, 1)
}
