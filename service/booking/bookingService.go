package bookingsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zazh/foxapp/model"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	catalogrepo "github.com/Zazh/foxapp/repository/catalog"
	striperepo "github.com/Zazh/foxapp/repository/stripe"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
	"github.com/Zazh/foxapp/service/notify"
	"github.com/Zazh/foxapp/util/clock"
)

// errors used by controllers

type ErrCode string

const (
	ErrTariffNotFound      ErrCode = "TARIFF_NOT_FOUND"
	ErrPeriodNotFound      ErrCode = "PERIOD_NOT_FOUND"
	ErrNotFound            ErrCode = "NOT_FOUND"
	ErrNotOwner            ErrCode = "NOT_OWNER"
	ErrAllocationExhausted ErrCode = "ALLOCATION_EXHAUSTED"
	ErrInvalidTransition   ErrCode = "INVALID_TRANSITION"
	ErrPaymentConflict     ErrCode = "PAYMENT_CONFLICT"
	ErrMockDisabled        ErrCode = "MOCK_DISABLED"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }

func NewError(c ErrCode) error { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

type CreateReq struct {
	TariffID  int64
	PeriodID  int64
	AddonIDs  []int64
	StartDate *time.Time
}

type Created struct {
	BookingID   int64
	Status      model.BookingStatus
	TotalAed    float64
	PaymentLink string
	ExpiresAt   time.Time
}

// Config carries the engine knobs the state machine depends on.
type Config struct {
	PendingExpiry time.Duration
	BaseURL       string
	StripeEnabled bool
}

type Service interface {
	// Create opens a PENDING booking with a price snapshot and payment
	// deadline. No unit is reserved yet: allocation is deferred to
	// payment so abandoned bookings never hold a unit hostage.
	Create(ctx context.Context, userID int64, req CreateReq) (*Created, error)

	// Extend opens a renewal booking for a PAID/ACTIVE parent. It shares
	// the parent's unit, carries no deposit, and routes through the same
	// pending→paid flow; on payment the parent's end date advances.
	Extend(ctx context.Context, userID, bookingID, periodID int64, addonIDs []int64) (*Created, error)

	// MarkPaid confirms payment. Idempotent under webhook retries; a
	// booking already cancelled reports a payment conflict instead of
	// being resurrected.
	MarkPaid(ctx context.Context, bookingID int64, paymentRef string) error

	// Cancel releases the unit (root bookings only) and finalizes the
	// booking. Owners may abandon a PENDING booking; staff may also
	// cancel a PAID one.
	Cancel(ctx context.Context, actorID int64, staff bool, bookingID int64) error

	// MockPay simulates a successful payment when Stripe is not
	// configured (local/dev environments).
	MockPay(ctx context.Context, userID, bookingID int64) error

	// ManualRelease frees the unit of an EXPIRED booking and completes
	// it. Units are never auto-released on expiry: they may still hold
	// belongings, so an operator decision is required.
	ManualRelease(ctx context.Context, bookingID int64) error

	MyBookings(ctx context.Context, userID int64) ([]bookingrepo.HistoryRow, error)
	Detail(ctx context.Context, userID int64, staff bool, bookingID int64) (*bookingrepo.Detail, error)
}

// ----- Service implementation -----

type service struct {
	db  *sql.DB
	br  bookingrepo.Repo
	cr  catalogrepo.Repo
	ur  unitrepo.Repo
	sr  striperepo.Repo
	n   notify.Dispatcher
	clk clock.Clock
	log *slog.Logger
	cfg Config
}

func New(db *sql.DB, br bookingrepo.Repo, cr catalogrepo.Repo, ur unitrepo.Repo, sr striperepo.Repo, n notify.Dispatcher, clk clock.Clock, log *slog.Logger, cfg Config) Service {
	return &service{db: db, br: br, cr: cr, ur: ur, sr: sr, n: n, clk: clk, log: log, cfg: cfg}
}

func (s *service) Create(ctx context.Context, userID int64, req CreateReq) (*Created, error) {
	tariff, err := s.cr.TariffByID(ctx, req.TariffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(ErrTariffNotFound)
		}
		return nil, err
	}
	if !tariff.IsActive {
		return nil, NewError(ErrTariffNotFound)
	}

	period, err := s.cr.PeriodByID(ctx, req.PeriodID, tariff.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(ErrPeriodNotFound)
		}
		return nil, err
	}

	// Sold-out precheck only. The unit itself is reserved at payment
	// time, so this can race; the authoritative check is AllocateOne.
	_, available, err := s.cr.UnitCounts(ctx, tariff.ServiceID, tariff.LocationID)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		return nil, NewError(ErrAllocationExhausted)
	}

	addons, err := s.cr.AddonsByIDs(ctx, tariff.ServiceID, req.AddonIDs)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	start := clock.Date(now)
	if req.StartDate != nil {
		start = clock.Date(*req.StartDate)
	}

	var addonsAed float64
	for _, a := range addons {
		addonsAed += a.PriceAed
	}

	b := &model.Booking{
		UserID:     userID,
		TariffID:   tariff.ID,
		PeriodID:   period.ID,
		StartDate:  start,
		EndDate:    period.EndDate(start),
		Status:     model.BookingPending,
		PriceAed:   period.PriceAed,
		AddonsAed:  addonsAed,
		DepositAed: tariff.DepositAed,
		TotalAed:   period.PriceAed + addonsAed + tariff.DepositAed,
		ExpiresAt:  now.Add(s.cfg.PendingExpiry),
	}

	if err := s.insertWithAddons(ctx, b, addons); err != nil {
		return nil, err
	}

	link, err := s.paymentLink(ctx, b, fmt.Sprintf("%s — %s", tariff.Name, period.Name))
	if err != nil {
		return nil, err
	}

	return &Created{
		BookingID:   b.ID,
		Status:      b.Status,
		TotalAed:    b.TotalAed,
		PaymentLink: link,
		ExpiresAt:   b.ExpiresAt,
	}, nil
}

func (s *service) Extend(ctx context.Context, userID, bookingID, periodID int64, addonIDs []int64) (*Created, error) {
	parent, err := s.br.ByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(ErrNotFound)
		}
		return nil, err
	}
	if parent.UserID != userID {
		return nil, NewError(ErrNotOwner)
	}
	if parent.Status != model.BookingPaid && parent.Status != model.BookingActive {
		return nil, NewError(ErrInvalidTransition)
	}

	tariff, err := s.cr.TariffByID(ctx, parent.TariffID)
	if err != nil {
		return nil, err
	}
	period, err := s.cr.PeriodByID(ctx, periodID, parent.TariffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(ErrPeriodNotFound)
		}
		return nil, err
	}
	addons, err := s.cr.AddonsByIDs(ctx, tariff.ServiceID, addonIDs)
	if err != nil {
		return nil, err
	}

	var addonsAed float64
	for _, a := range addons {
		addonsAed += a.PriceAed
	}

	// The renewal starts where the parent ends, keeps the same unit
	// (informational copy) and carries no deposit: it was paid once on
	// the root booking.
	start := clock.Date(parent.EndDate)
	b := &model.Booking{
		UserID:        userID,
		TariffID:      parent.TariffID,
		PeriodID:      period.ID,
		StorageUnitID: parent.StorageUnitID,
		ParentID:      &parent.ID,
		StartDate:     start,
		EndDate:       period.EndDate(start),
		Status:        model.BookingPending,
		PriceAed:      period.PriceAed,
		AddonsAed:     addonsAed,
		DepositAed:    0,
		TotalAed:      period.PriceAed + addonsAed,
		ExpiresAt:     s.clk.Now().Add(s.cfg.PendingExpiry),
	}

	if err := s.insertWithAddons(ctx, b, addons); err != nil {
		return nil, err
	}

	link, err := s.paymentLink(ctx, b, fmt.Sprintf("%s — %s (extension)", tariff.Name, period.Name))
	if err != nil {
		return nil, err
	}

	return &Created{
		BookingID:   b.ID,
		Status:      b.Status,
		TotalAed:    b.TotalAed,
		PaymentLink: link,
		ExpiresAt:   b.ExpiresAt,
	}, nil
}

func (s *service) insertWithAddons(ctx context.Context, b *model.Booking, addons []model.AddonService) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.br.Insert(ctx, tx, b); err != nil {
		return err
	}
	for _, a := range addons {
		if err = s.br.InsertAddon(ctx, tx, &model.BookingAddon{
			BookingID: b.ID,
			AddonID:   a.ID,
			PriceAed:  a.PriceAed,
		}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// paymentLink creates a Stripe checkout session for the booking, or
// points at the mock payment endpoint when Stripe is not configured.
// A gateway failure cancels the fresh booking: there is no way left to
// pay for it.
func (s *service) paymentLink(ctx context.Context, b *model.Booking, description string) (string, error) {
	if !s.cfg.StripeEnabled {
		return fmt.Sprintf("%s/v1/bookings/%d/mock-pay", s.cfg.BaseURL, b.ID), nil
	}

	sess, err := s.sr.CreateCheckoutSession(striperepo.CreateSessionReq{
		BookingID:   b.ID,
		AmountAed:   b.TotalAed,
		Description: description,
		SuccessURL:  fmt.Sprintf("%s/v1/bookings/%d?paid=1", s.cfg.BaseURL, b.ID),
		CancelURL:   fmt.Sprintf("%s/v1/bookings/%d?cancelled=1", s.cfg.BaseURL, b.ID),
	})
	if err != nil {
		s.log.Error("stripe session create failed, cancelling booking", "booking_id", b.ID, "err", err)
		if cerr := s.cancelTx(ctx, b.ID, false); cerr != nil {
			s.log.Error("cancel after stripe failure", "booking_id", b.ID, "err", cerr)
		}
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.br.SetStripeSession(ctx, b.ID, sess.ID); err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (s *service) MarkPaid(ctx context.Context, bookingID int64, paymentRef string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.br.ByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(ErrNotFound)
		}
		return err
	}

	if b.Status != model.BookingPending {
		// Retried webhooks land here: payment already processed is a
		// success, a booking cancelled before the money arrived is a
		// conflict for an operator, not a silent overwrite.
		if b.Status == model.BookingCancelled {
			return NewError(ErrPaymentConflict)
		}
		return tx.Commit()
	}

	ok, err := s.br.MarkPaid(ctx, tx, b.ID, paymentRef, s.clk.Now())
	if err != nil {
		return err
	}
	if !ok {
		return tx.Commit()
	}

	paidNoUnit := false
	if b.ParentID != nil {
		parent, perr := s.br.ByIDForUpdate(ctx, tx, *b.ParentID)
		if perr != nil {
			err = perr
			return err
		}
		if err = s.br.PushParentEndDate(ctx, tx, parent.ID, b.EndDate); err != nil {
			return err
		}
		// Record-keeping copy of the shared unit; the pool is untouched.
		if b.StorageUnitID == nil && parent.StorageUnitID != nil {
			if err = s.br.SetUnit(ctx, tx, b.ID, *parent.StorageUnitID); err != nil {
				return err
			}
		}
	} else {
		tariff, terr := s.cr.TariffByID(ctx, b.TariffID)
		if terr != nil {
			err = terr
			return err
		}
		unitID, aerr := s.ur.AllocateOne(ctx, tx, tariff.ServiceID, tariff.LocationID)
		switch {
		case aerr == nil:
			if err = s.br.SetUnit(ctx, tx, b.ID, unitID); err != nil {
				return err
			}
		case errors.Is(aerr, sql.ErrNoRows):
			// Sold out after the money was captured. The booking stays
			// PAID with no unit and is flagged for manual assignment.
			paidNoUnit = true
			s.log.Error("paid booking has no unit to allocate", "booking_id", b.ID)
		default:
			err = aerr
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.n.Dispatch(ctx, notify.Event{
		UserID:    b.UserID,
		EventType: notify.EventBookingPaid,
		Payload:   map[string]any{"booking_id": b.ID, "total_aed": b.TotalAed},
	})
	if paidNoUnit {
		s.n.Dispatch(ctx, notify.Event{
			UserID:    b.UserID,
			EventType: notify.EventBookingPaidNoUnit,
			Payload:   map[string]any{"booking_id": b.ID},
		})
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, actorID int64, staff bool, bookingID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.br.ByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(ErrNotFound)
		}
		return err
	}

	if !staff && b.UserID != actorID {
		return NewError(ErrNotOwner)
	}
	cancellable := b.Status == model.BookingPending || (staff && b.Status == model.BookingPaid)
	if !cancellable {
		return NewError(ErrInvalidTransition)
	}

	ok, err := s.br.Transition(ctx, tx, b.ID, b.Status, model.BookingCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrInvalidTransition)
	}

	// Extensions only carry a copy of the parent's unit; releasing it
	// would free a unit the parent still occupies.
	if b.StorageUnitID != nil && b.ParentID == nil {
		if err = s.ur.ReleaseTx(ctx, tx, *b.StorageUnitID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// cancelTx is the internal pending-only variant used when checkout
// session creation fails right after insert.
func (s *service) cancelTx(ctx context.Context, bookingID int64, _ bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = s.br.Transition(ctx, tx, bookingID, model.BookingPending, model.BookingCancelled); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) MockPay(ctx context.Context, userID, bookingID int64) error {
	if s.cfg.StripeEnabled {
		return NewError(ErrMockDisabled)
	}
	b, err := s.br.ByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(ErrNotFound)
		}
		return err
	}
	if b.UserID != userID {
		return NewError(ErrNotOwner)
	}
	return s.MarkPaid(ctx, bookingID, fmt.Sprintf("mock_payment_%d", bookingID))
}

func (s *service) ManualRelease(ctx context.Context, bookingID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.br.ByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewError(ErrNotFound)
		}
		return err
	}
	if b.Status != model.BookingExpired && b.Status != model.BookingCompleted {
		return NewError(ErrInvalidTransition)
	}

	if b.StorageUnitID != nil {
		if err = s.ur.ReleaseTx(ctx, tx, *b.StorageUnitID); err != nil {
			return err
		}
	}
	if b.Status == model.BookingExpired {
		if _, err = s.br.Transition(ctx, tx, b.ID, model.BookingExpired, model.BookingCompleted); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *service) MyBookings(ctx context.Context, userID int64) ([]bookingrepo.HistoryRow, error) {
	return s.br.ListByUser(ctx, userID)
}

func (s *service) Detail(ctx context.Context, userID int64, staff bool, bookingID int64) (*bookingrepo.Detail, error) {
	d, err := s.br.Detail(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(ErrNotFound)
		}
		return nil, err
	}
	if !staff && d.Booking.UserID != userID {
		return nil, NewError(ErrNotOwner)
	}
	return d, nil
}
