package visitsvc

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zazh/foxapp/model"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	visitrepo "github.com/Zazh/foxapp/repository/visit"
	"github.com/Zazh/foxapp/service/notify"
	"github.com/Zazh/foxapp/util/clock"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type visitRepoMock struct {
	insertTokenFn      func(ctx context.Context, t *model.AccessToken) error
	tokenByValueFn     func(ctx context.Context, value string) (*model.AccessToken, error)
	reusableTokenFn    func(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error)
	setGuestNameFn     func(ctx context.Context, tokenID int64, name string) error
	consumeAndRecordFn func(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error)
	insertVisitFn      func(ctx context.Context, v *model.Visit) error
	listByUserFn       func(ctx context.Context, userID, bookingID int64, limit int) ([]model.Visit, error)
}

var _ visitrepo.Repo = (*visitRepoMock)(nil)

func (m *visitRepoMock) InsertToken(ctx context.Context, t *model.AccessToken) error {
	return m.insertTokenFn(ctx, t)
}
func (m *visitRepoMock) TokenByValue(ctx context.Context, value string) (*model.AccessToken, error) {
	return m.tokenByValueFn(ctx, value)
}
func (m *visitRepoMock) ReusableToken(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error) {
	return m.reusableTokenFn(ctx, bookingID, typ, now)
}
func (m *visitRepoMock) SetGuestName(ctx context.Context, tokenID int64, name string) error {
	if m.setGuestNameFn == nil {
		return nil
	}
	return m.setGuestNameFn(ctx, tokenID, name)
}
func (m *visitRepoMock) ConsumeAndRecord(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error) {
	return m.consumeAndRecordFn(ctx, tokenID, usedAt, v)
}
func (m *visitRepoMock) InsertVisit(ctx context.Context, v *model.Visit) error {
	return m.insertVisitFn(ctx, v)
}
func (m *visitRepoMock) ListByUser(ctx context.Context, userID, bookingID int64, limit int) ([]model.Visit, error) {
	return m.listByUserFn(ctx, userID, bookingID, limit)
}

// bookingRepoMock implements only the lookups the access flows use.
type bookingRepoMock struct {
	bookingrepo.Repo

	byIDFn   func(ctx context.Context, id int64) (*model.Booking, error)
	detailFn func(ctx context.Context, id int64) (*bookingrepo.Detail, error)
}

func (m *bookingRepoMock) ByID(ctx context.Context, id int64) (*model.Booking, error) {
	return m.byIDFn(ctx, id)
}
func (m *bookingRepoMock) Detail(ctx context.Context, id int64) (*bookingrepo.Detail, error) {
	return m.detailFn(ctx, id)
}

type dispatcherMock struct{ events []notify.Event }

func (d *dispatcherMock) Dispatch(_ context.Context, e notify.Event) {
	d.events = append(d.events, e)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		OwnerTokenTTL: 15 * time.Minute,
		GuestTokenTTL: 24 * time.Hour,
		BaseURL:       "http://localhost:8080",
	}
}

func accessibleBookingMock(unit bool) *bookingRepoMock {
	return &bookingRepoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Booking, error) {
			b := &model.Booking{ID: id, UserID: 1, Status: model.BookingActive}
			if unit {
				u := int64(11)
				b.StorageUnitID = &u
			}
			return b, nil
		},
	}
}

func TestIssueOwnerToken_MintsFresh(t *testing.T) {
	var inserted *model.AccessToken
	vr := &visitRepoMock{
		reusableTokenFn: func(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error) {
			return nil, sql.ErrNoRows
		},
		insertTokenFn: func(ctx context.Context, tok *model.AccessToken) error {
			tok.ID = 100
			inserted = tok
			return nil
		},
	}
	svc := New(vr, accessibleBookingMock(true), &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	out, err := svc.IssueOwnerToken(context.Background(), 1, 5)
	require.NoError(t, err)
	require.NotNil(t, inserted)
	require.Equal(t, model.TokenOwner, inserted.TokenType)
	require.Equal(t, now.Add(15*time.Minute), inserted.ExpiresAt)
	require.NotEmpty(t, out.Token)
	require.Empty(t, out.GuestLink)
}

func TestIssueOwnerToken_ReusesUnexpired(t *testing.T) {
	existing := &model.AccessToken{
		ID: 7, BookingID: 5, Token: "existing-token",
		TokenType: model.TokenOwner, ExpiresAt: now.Add(10 * time.Minute),
	}
	vr := &visitRepoMock{
		reusableTokenFn: func(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error) {
			return existing, nil
		},
		insertTokenFn: func(ctx context.Context, tok *model.AccessToken) error {
			t.Fatal("should not mint a new token")
			return nil
		},
	}
	svc := New(vr, accessibleBookingMock(true), &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	out, err := svc.IssueOwnerToken(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, "existing-token", out.Token)
}

func TestIssueGuestToken_HasShareableLink(t *testing.T) {
	vr := &visitRepoMock{
		reusableTokenFn: func(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error) {
			return nil, sql.ErrNoRows
		},
		insertTokenFn: func(ctx context.Context, tok *model.AccessToken) error { return nil },
	}
	svc := New(vr, accessibleBookingMock(true), &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	out, err := svc.IssueGuestToken(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Contains(t, out.GuestLink, "http://localhost:8080/v1/access/qr/")
}

func TestIssueToken_Guards(t *testing.T) {
	svc := New(&visitRepoMock{}, accessibleBookingMock(false), &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())
	_, err := svc.IssueOwnerToken(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrNoUnitAssigned)

	_, err = svc.IssueOwnerToken(context.Background(), 2, 5)
	require.ErrorIs(t, err, ErrNotOwner)

	pending := &bookingRepoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 1, Status: model.BookingPending}, nil
		},
	}
	svc = New(&visitRepoMock{}, pending, &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())
	_, err = svc.IssueOwnerToken(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrNotAllowed)
}

func scanFixture(tok *model.AccessToken) (*visitRepoMock, *bookingRepoMock) {
	vr := &visitRepoMock{
		tokenByValueFn: func(ctx context.Context, value string) (*model.AccessToken, error) {
			if value != tok.Token {
				return nil, sql.ErrNoRows
			}
			return tok, nil
		},
		consumeAndRecordFn: func(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error) {
			if tok.IsUsed {
				return false, nil
			}
			tok.IsUsed = true
			v.ID = 1
			return true, nil
		},
		insertVisitFn: func(ctx context.Context, v *model.Visit) error {
			v.ID = 1
			return nil
		},
	}
	br := &bookingRepoMock{
		detailFn: func(ctx context.Context, id int64) (*bookingrepo.Detail, error) {
			u := int64(11)
			return &bookingrepo.Detail{
				Booking:   model.Booking{ID: id, UserID: 1, Status: model.BookingActive, StorageUnitID: &u},
				OwnerName: "Aruzhan S",
				UnitCode:  "DXB-A-012",
			}, nil
		},
	}
	return vr, br
}

func TestScan_OwnerReusable(t *testing.T) {
	tok := &model.AccessToken{
		ID: 9, BookingID: 5, Token: "owner-token",
		TokenType: model.TokenOwner, ExpiresAt: now.Add(5 * time.Minute),
	}
	vr, br := scanFixture(tok)
	vr.consumeAndRecordFn = func(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error) {
		t.Fatal("owner tokens must not be consumed")
		return false, nil
	}
	d := &dispatcherMock{}
	svc := New(vr, br, d, clock.Fixed{T: now}, testLogger(), testConfig())

	out, err := svc.Scan(context.Background(), 99, "owner-token", "")
	require.NoError(t, err)
	require.True(t, out.Allowed)
	require.Equal(t, "Aruzhan S", out.VisitorName)
	require.Equal(t, "DXB-A-012", out.UnitCode)

	// Same token scans again fine.
	_, err = svc.Scan(context.Background(), 99, "owner-token", "")
	require.NoError(t, err)
	require.Len(t, d.events, 2)
	require.Equal(t, notify.EventVisitRecorded, d.events[0].EventType)
}

func TestScan_GuestSingleUse(t *testing.T) {
	tok := &model.AccessToken{
		ID: 9, BookingID: 5, Token: "guest-token",
		TokenType: model.TokenGuest, ExpiresAt: now.Add(23 * time.Hour),
	}
	vr, br := scanFixture(tok)
	svc := New(vr, br, &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	out, err := svc.Scan(context.Background(), 99, "guest-token", "Visitor Vee")
	require.NoError(t, err)
	require.True(t, out.Allowed)
	require.Equal(t, "Visitor Vee", out.VisitorName)

	_, err = svc.Scan(context.Background(), 99, "guest-token", "Visitor Vee")
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestScan_GuestNameRequired(t *testing.T) {
	tok := &model.AccessToken{
		ID: 9, BookingID: 5, Token: "guest-token",
		TokenType: model.TokenGuest, ExpiresAt: now.Add(time.Hour),
	}
	vr, br := scanFixture(tok)
	svc := New(vr, br, &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	_, err := svc.Scan(context.Background(), 99, "guest-token", "")
	require.ErrorIs(t, err, ErrMissingGuestName)

	// Name stored on the token wins over a name typed at the gate.
	tok.GuestName = "Stored Name"
	out, err := svc.Scan(context.Background(), 99, "guest-token", "Other Name")
	require.NoError(t, err)
	require.Equal(t, "Stored Name", out.VisitorName)
}

func TestScan_Expired(t *testing.T) {
	tok := &model.AccessToken{
		ID: 9, BookingID: 5, Token: "stale",
		TokenType: model.TokenOwner, ExpiresAt: now.Add(-time.Second),
	}
	vr, br := scanFixture(tok)
	svc := New(vr, br, &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	_, err := svc.Scan(context.Background(), 99, "stale", "")
	require.ErrorIs(t, err, ErrTokenExpired)

	// The expiry instant itself is already out.
	tok.ExpiresAt = now
	_, err = svc.Scan(context.Background(), 99, "stale", "")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestScan_NotFound(t *testing.T) {
	vr, br := scanFixture(&model.AccessToken{Token: "real"})
	svc := New(vr, br, &dispatcherMock{}, clock.Fixed{T: now}, testLogger(), testConfig())

	_, err := svc.Scan(context.Background(), 99, "bogus", "")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestScan_ConcurrentGuestLosesRace(t *testing.T) {
	tok := &model.AccessToken{
		ID: 9, BookingID: 5, Token: "guest-token",
		TokenType: model.TokenGuest, GuestName: "Vee", ExpiresAt: now.Add(time.Hour),
	}
	vr, br := scanFixture(tok)
	vr.consumeAndRecordFn = func(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error) {
		return false, nil // another scanner won the conditional update
	}
	vr.insertVisitFn = func(ctx context.Context, v *model.Visit) error {
		t.Fatal("no visit row outside the consume transaction")
		return nil
	}
	d := &dispatcherMock{}
	svc := New(vr, br, d, clock.Fixed{T: now}, testLogger(), testConfig())

	_, err := svc.Scan(context.Background(), 99, "guest-token", "")
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
	require.Empty(t, d.events)
}
