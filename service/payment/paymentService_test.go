package paymentsvc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	striperepo "github.com/Zazh/foxapp/repository/stripe"
	bookingsvc "github.com/Zazh/foxapp/service/booking"
)

type stripeMock struct {
	verifyFn func(sigHeader string, rawBody []byte) error
}

var _ striperepo.Repo = (*stripeMock)(nil)

func (m *stripeMock) CreateCheckoutSession(req striperepo.CreateSessionReq) (*striperepo.Session, error) {
	return nil, errors.New("not used")
}
func (m *stripeMock) VerifyWebhookSignature(sigHeader string, rawBody []byte) error {
	if m.verifyFn == nil {
		return nil
	}
	return m.verifyFn(sigHeader, rawBody)
}

// bookingSvcMock only answers MarkPaid; the webhook path touches
// nothing else.
type bookingSvcMock struct {
	bookingsvc.Service

	markPaidFn func(ctx context.Context, bookingID int64, paymentRef string) error
}

func (m *bookingSvcMock) MarkPaid(ctx context.Context, bookingID int64, paymentRef string) error {
	return m.markPaidFn(ctx, bookingID, paymentRef)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const completedEvent = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {"object": {
		"id": "cs_test_123",
		"client_reference_id": "42",
		"payment_intent": "pi_789",
		"payment_status": "paid"
	}}
}`

func TestHandleStripe_Completed(t *testing.T) {
	var gotID int64
	var gotRef string
	bs := &bookingSvcMock{markPaidFn: func(ctx context.Context, bookingID int64, paymentRef string) error {
		gotID, gotRef = bookingID, paymentRef
		return nil
	}}
	svc := New(&stripeMock{}, bs, testLogger())

	err := svc.HandleStripe(context.Background(), "sig", []byte(completedEvent))
	require.NoError(t, err)
	require.Equal(t, int64(42), gotID)
	require.Equal(t, "pi_789", gotRef)
}

func TestHandleStripe_BadSignature(t *testing.T) {
	sr := &stripeMock{verifyFn: func(sigHeader string, rawBody []byte) error {
		return errors.New("signature mismatch")
	}}
	bs := &bookingSvcMock{markPaidFn: func(ctx context.Context, bookingID int64, paymentRef string) error {
		t.Fatal("must not reach booking service")
		return nil
	}}
	svc := New(sr, bs, testLogger())

	err := svc.HandleStripe(context.Background(), "bad", []byte(completedEvent))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestHandleStripe_IgnoresOtherEvents(t *testing.T) {
	bs := &bookingSvcMock{markPaidFn: func(ctx context.Context, bookingID int64, paymentRef string) error {
		t.Fatal("must not reach booking service")
		return nil
	}}
	svc := New(&stripeMock{}, bs, testLogger())

	err := svc.HandleStripe(context.Background(), "sig",
		[]byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`))
	require.NoError(t, err)
}

func TestHandleStripe_ConflictAcknowledged(t *testing.T) {
	bs := &bookingSvcMock{markPaidFn: func(ctx context.Context, bookingID int64, paymentRef string) error {
		return bookingsvc.NewError(bookingsvc.ErrPaymentConflict)
	}}
	svc := New(&stripeMock{}, bs, testLogger())

	// Webhook is acknowledged so Stripe stops retrying; the conflict is
	// an operator problem.
	err := svc.HandleStripe(context.Background(), "sig", []byte(completedEvent))
	require.NoError(t, err)
}

func TestHandleStripe_InternalErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	bs := &bookingSvcMock{markPaidFn: func(ctx context.Context, bookingID int64, paymentRef string) error {
		return boom
	}}
	svc := New(&stripeMock{}, bs, testLogger())

	err := svc.HandleStripe(context.Background(), "sig", []byte(completedEvent))
	require.ErrorIs(t, err, boom)
}
