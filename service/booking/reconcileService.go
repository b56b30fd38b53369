package bookingsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zazh/foxapp/model"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
	"github.com/Zazh/foxapp/service/notify"
	"github.com/Zazh/foxapp/util/clock"
)

// Summary reports what a single sweep changed.
type Summary struct {
	CancelledPending int `json:"cancelled_pending"`
	Activated        int `json:"activated"`
	Expired          int `json:"expired"`
	RemindersSent    int `json:"reminders_sent"`
	ExpiredNotices   int `json:"expired_notices"`
}

// Reconciler is the periodic sweep that repairs every time-driven
// transition: stale PENDING bookings, PAID bookings whose term started,
// and ACTIVE bookings past their effective end date. Each run is safe
// to repeat; all transitions are guarded and notifications are deduped
// through the notification log.
type Reconciler interface {
	Run(ctx context.Context) (Summary, error)
}

type reconciler struct {
	br           bookingrepo.Repo
	ur           unitrepo.Repo
	n            notify.Dispatcher
	clk          clock.Clock
	log          *slog.Logger
	reminderDays []int
}

func NewReconciler(br bookingrepo.Repo, ur unitrepo.Repo, n notify.Dispatcher, clk clock.Clock, log *slog.Logger, reminderDays []int) Reconciler {
	return &reconciler{br: br, ur: ur, n: n, clk: clk, log: log, reminderDays: reminderDays}
}

func (r *reconciler) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	now := r.clk.Now()
	today := clock.Date(now)

	// Order matters: activation runs before expiry so a booking paid for
	// a term that already ended still passes through ACTIVE on its way
	// out instead of sitting in PAID forever.
	r.cancelExpiredPending(ctx, now, &sum)
	r.activateDue(ctx, today, &sum)
	r.expireOverdue(ctx, today, &sum)
	r.sendReminders(ctx, today, &sum)

	r.log.Info("reconcile sweep done",
		"cancelled_pending", sum.CancelledPending,
		"activated", sum.Activated,
		"expired", sum.Expired,
		"reminders_sent", sum.RemindersSent,
		"expired_notices", sum.ExpiredNotices,
	)
	return sum, nil
}

// cancelExpiredPending voids bookings whose payment deadline passed.
// A payment racing the sweep wins: the guarded transition finds the row
// no longer pending and the booking is left alone, uncounted. Pending
// roots hold no unit (allocation happens at payment), so the release
// below only fires for rows that somehow carry one anyway.
func (r *reconciler) cancelExpiredPending(ctx context.Context, now time.Time, sum *Summary) {
	stale, err := r.br.ListExpiredPending(ctx, now)
	if err != nil {
		r.log.Error("reconcile: list expired pending", "err", err)
		return
	}
	for i := range stale {
		b := &stale[i]
		won, err := r.br.Transition(ctx, nil, b.ID, model.BookingPending, model.BookingCancelled)
		if err != nil {
			r.log.Error("reconcile: cancel pending", "booking_id", b.ID, "err", err)
			continue
		}
		if !won {
			continue
		}
		if b.StorageUnitID != nil && b.ParentID == nil {
			if err := r.ur.Release(ctx, *b.StorageUnitID); err != nil {
				r.log.Error("reconcile: release unit", "booking_id", b.ID, "unit_id", *b.StorageUnitID, "err", err)
			}
		}
		sum.CancelledPending++
	}
}

func (r *reconciler) activateDue(ctx context.Context, today time.Time, sum *Summary) {
	ids, err := r.br.ListDueActivation(ctx, today)
	if err != nil {
		r.log.Error("reconcile: list due activation", "err", err)
		return
	}
	for _, id := range ids {
		ok, err := r.br.Transition(ctx, nil, id, model.BookingPaid, model.BookingActive)
		if err != nil {
			r.log.Error("reconcile: activate", "booking_id", id, "err", err)
			continue
		}
		if ok {
			sum.Activated++
		}
	}
}

// expireOverdue flips overdue ACTIVE roots to EXPIRED. The unit stays
// assigned and unavailable: it may still hold the customer's
// belongings, and only a staff release frees it. The expiry notice goes
// out once, on the sweep that finds the booking exactly one day past
// its effective end.
func (r *reconciler) expireOverdue(ctx context.Context, today time.Time, sum *Summary) {
	overdue, err := r.br.ListOverdueActive(ctx, today)
	if err != nil {
		r.log.Error("reconcile: list overdue active", "err", err)
		return
	}
	for _, o := range overdue {
		ok, err := r.br.Transition(ctx, nil, o.BookingID, model.BookingActive, model.BookingExpired)
		if err != nil {
			r.log.Error("reconcile: expire", "booking_id", o.BookingID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		sum.Expired++

		daysOver := int(today.Sub(clock.Date(o.EffectiveEnd)).Hours() / 24)
		if daysOver != 1 {
			continue
		}
		fresh, err := r.br.LogNotification(ctx, o.BookingID, "expired")
		if err != nil {
			r.log.Error("reconcile: log expired notice", "booking_id", o.BookingID, "err", err)
			continue
		}
		if !fresh {
			continue
		}
		r.n.Dispatch(ctx, notify.Event{
			UserID:    o.UserID,
			EventType: notify.EventBookingExpired,
			Payload:   map[string]any{"booking_id": o.BookingID, "end_date": o.EffectiveEnd.Format("2006-01-02")},
		})
		sum.ExpiredNotices++
	}
}

func (r *reconciler) sendReminders(ctx context.Context, today time.Time, sum *Summary) {
	for _, d := range r.reminderDays {
		target := today.AddDate(0, 0, d)
		due, err := r.br.ListExpiringOn(ctx, target)
		if err != nil {
			r.log.Error("reconcile: list expiring", "days", d, "err", err)
			continue
		}
		for _, rr := range due {
			fresh, err := r.br.LogNotification(ctx, rr.BookingID, fmt.Sprintf("reminder_%d", d))
			if err != nil {
				r.log.Error("reconcile: log reminder", "booking_id", rr.BookingID, "err", err)
				continue
			}
			if !fresh {
				continue
			}
			r.n.Dispatch(ctx, notify.Event{
				UserID:    rr.UserID,
				EventType: notify.EventBookingExpiring,
				Payload: map[string]any{
					"booking_id": rr.BookingID,
					"end_date":   rr.EndDate.Format("2006-01-02"),
					"days_left":  d,
				},
			})
			sum.RemindersSent++
		}
	}
}
