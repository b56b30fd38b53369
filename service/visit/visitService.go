package visitsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zazh/foxapp/model"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	visitrepo "github.com/Zazh/foxapp/repository/visit"
	"github.com/Zazh/foxapp/service/notify"
	"github.com/Zazh/foxapp/util/clock"
	"github.com/Zazh/foxapp/util/token"
)

var (
	ErrTokenNotFound    = errors.New("access token not found")
	ErrTokenExpired     = errors.New("access token expired")
	ErrTokenAlreadyUsed = errors.New("access token already used")
	ErrMissingGuestName = errors.New("guest name required")
	ErrNoUnitAssigned   = errors.New("booking has no unit assigned")
	ErrNotOwner         = errors.New("not the booking owner")
	ErrNotAllowed       = errors.New("booking does not allow access")
	ErrBookingNotFound  = errors.New("booking not found")
)

const (
	tokenBytes   = 32
	historyLimit = 50
)

// IssuedToken is what the QR endpoints render.
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	QRPath    string    `json:"qr_path"`
	GuestLink string    `json:"guest_link,omitempty"`
}

// ScanResult is the gate decision plus display context for the scanner
// screen.
type ScanResult struct {
	Allowed     bool      `json:"allowed"`
	VisitorType string    `json:"visitor_type"`
	VisitorName string    `json:"visitor_name"`
	UnitCode    string    `json:"unit_code"`
	BookingID   int64     `json:"booking_id"`
	VisitedAt   time.Time `json:"visited_at"`
}

type Config struct {
	OwnerTokenTTL time.Duration
	GuestTokenTTL time.Duration
	BaseURL       string
}

type Service interface {
	// IssueOwnerToken returns a short-lived reusable QR token for the
	// booking owner. An unexpired token is reused so refreshing the QR
	// screen does not churn rows.
	IssueOwnerToken(ctx context.Context, userID, bookingID int64) (*IssuedToken, error)

	// IssueGuestToken mints a 24h single-use token the owner can forward
	// to a visitor.
	IssueGuestToken(ctx context.Context, userID, bookingID int64) (*IssuedToken, error)

	// Scan validates a presented token, records the visit, and consumes
	// guest tokens. Guest scans require the visitor's name on first use.
	Scan(ctx context.Context, staffID int64, tokenValue, guestName string) (*ScanResult, error)

	// TokenValue resolves a token for QR rendering without consuming it.
	TokenValue(ctx context.Context, value string) (*model.AccessToken, error)

	VisitHistory(ctx context.Context, userID, bookingID int64) ([]model.Visit, error)
}

type service struct {
	vr  visitrepo.Repo
	br  bookingrepo.Repo
	n   notify.Dispatcher
	clk clock.Clock
	log *slog.Logger
	cfg Config
}

func New(vr visitrepo.Repo, br bookingrepo.Repo, n notify.Dispatcher, clk clock.Clock, log *slog.Logger, cfg Config) Service {
	return &service{vr: vr, br: br, n: n, clk: clk, log: log, cfg: cfg}
}

// accessibleBooking loads the booking and checks it can be entered:
// owned by the caller, PAID or ACTIVE, unit assigned.
func (s *service) accessibleBooking(ctx context.Context, userID, bookingID int64) (*model.Booking, error) {
	b, err := s.br.ByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	if b.Status != model.BookingPaid && b.Status != model.BookingActive {
		return nil, ErrNotAllowed
	}
	if b.StorageUnitID == nil {
		return nil, ErrNoUnitAssigned
	}
	return b, nil
}

func (s *service) IssueOwnerToken(ctx context.Context, userID, bookingID int64) (*IssuedToken, error) {
	return s.issue(ctx, userID, bookingID, model.TokenOwner, s.cfg.OwnerTokenTTL)
}

func (s *service) IssueGuestToken(ctx context.Context, userID, bookingID int64) (*IssuedToken, error) {
	return s.issue(ctx, userID, bookingID, model.TokenGuest, s.cfg.GuestTokenTTL)
}

func (s *service) issue(ctx context.Context, userID, bookingID int64, typ model.TokenType, ttl time.Duration) (*IssuedToken, error) {
	if _, err := s.accessibleBooking(ctx, userID, bookingID); err != nil {
		return nil, err
	}
	now := s.clk.Now()

	t, err := s.vr.ReusableToken(ctx, bookingID, typ, now)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		t = &model.AccessToken{
			BookingID: bookingID,
			Token:     token.New(tokenBytes),
			TokenType: typ,
			ExpiresAt: now.Add(ttl),
		}
		if err := s.vr.InsertToken(ctx, t); err != nil {
			return nil, err
		}
	}

	out := &IssuedToken{
		Token:     t.Token,
		TokenType: string(t.TokenType),
		ExpiresAt: t.ExpiresAt,
		QRPath:    fmt.Sprintf("/v1/access/qr/%s", t.Token),
	}
	if typ == model.TokenGuest {
		out.GuestLink = fmt.Sprintf("%s/v1/access/qr/%s", s.cfg.BaseURL, t.Token)
	}
	return out, nil
}

func (s *service) TokenValue(ctx context.Context, value string) (*model.AccessToken, error) {
	t, err := s.vr.TokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *service) Scan(ctx context.Context, staffID int64, tokenValue, guestName string) (*ScanResult, error) {
	t, err := s.vr.TokenByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	now := s.clk.Now()
	if !now.Before(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if t.Consumed() {
		return nil, ErrTokenAlreadyUsed
	}

	d, err := s.br.Detail(ctx, t.BookingID)
	if err != nil {
		return nil, err
	}
	if d.Booking.Status != model.BookingPaid && d.Booking.Status != model.BookingActive {
		return nil, ErrNotAllowed
	}

	visitorName := d.OwnerName
	if t.TokenType == model.TokenGuest {
		switch {
		case t.GuestName != "":
			visitorName = t.GuestName
		case guestName != "":
			visitorName = guestName
			if err := s.vr.SetGuestName(ctx, t.ID, guestName); err != nil {
				return nil, err
			}
		default:
			return nil, ErrMissingGuestName
		}
	}

	v := &model.Visit{
		BookingID:     t.BookingID,
		AccessTokenID: &t.ID,
		VisitorType:   t.TokenType,
		VisitorName:   visitorName,
		ScannedByID:   &staffID,
		VisitedAt:     now,
	}
	if t.TokenType == model.TokenGuest {
		// Visit row and token consumption commit together: a burned
		// token always has its audit row.
		ok, err := s.vr.ConsumeAndRecord(ctx, t.ID, now, v)
		if err != nil {
			return nil, err
		}
		if !ok {
			// A concurrent scan burned it first.
			return nil, ErrTokenAlreadyUsed
		}
	} else if err := s.vr.InsertVisit(ctx, v); err != nil {
		return nil, err
	}

	s.n.Dispatch(ctx, notify.Event{
		UserID:    d.Booking.UserID,
		EventType: notify.EventVisitRecorded,
		Payload: map[string]any{
			"booking_id":   t.BookingID,
			"visitor_type": string(t.TokenType),
			"visitor_name": visitorName,
			"visited_at":   now.Format(time.RFC3339),
		},
	})

	return &ScanResult{
		Allowed:     true,
		VisitorType: string(t.TokenType),
		VisitorName: visitorName,
		UnitCode:    d.UnitCode,
		BookingID:   t.BookingID,
		VisitedAt:   now,
	}, nil
}

func (s *service) VisitHistory(ctx context.Context, userID, bookingID int64) ([]model.Visit, error) {
	return s.vr.ListByUser(ctx, userID, bookingID, historyLimit)
}
