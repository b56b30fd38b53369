package paymentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	striperepo "github.com/Zazh/foxapp/repository/stripe"
	bookingsvc "github.com/Zazh/foxapp/service/booking"
)

var ErrBadSignature = errors.New("invalid webhook signature")

type Service interface {
	// HandleStripe processes a webhook delivery. Verification failures
	// surface as ErrBadSignature; everything else is acknowledged so
	// Stripe stops retrying, with conflicts logged for an operator.
	HandleStripe(ctx context.Context, sigHeader string, rawBody []byte) error
}

type service struct {
	sr  striperepo.Repo
	bs  bookingsvc.Service
	log *slog.Logger
}

func New(sr striperepo.Repo, bs bookingsvc.Service, log *slog.Logger) Service {
	return &service{sr: sr, bs: bs, log: log}
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			PaymentIntent     string `json:"payment_intent"`
			PaymentStatus     string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

func (s *service) HandleStripe(ctx context.Context, sigHeader string, rawBody []byte) error {
	if err := s.sr.VerifyWebhookSignature(sigHeader, rawBody); err != nil {
		s.log.Warn("stripe webhook rejected", "err", err)
		return ErrBadSignature
	}

	var ev stripeEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return fmt.Errorf("decode stripe event: %w", err)
	}

	if ev.Type != "checkout.session.completed" {
		s.log.Debug("stripe event ignored", "type", ev.Type, "id", ev.ID)
		return nil
	}

	bookingID, err := strconv.ParseInt(ev.Data.Object.ClientReferenceID, 10, 64)
	if err != nil {
		s.log.Error("stripe event without booking reference", "event_id", ev.ID)
		return nil
	}

	paymentRef := ev.Data.Object.PaymentIntent
	if paymentRef == "" {
		paymentRef = ev.Data.Object.ID
	}

	if err := s.bs.MarkPaid(ctx, bookingID, paymentRef); err != nil {
		switch bookingsvc.Code(err) {
		case bookingsvc.ErrPaymentConflict:
			// Money arrived for a cancelled booking; needs a refund
			// decision, not an automatic state change.
			s.log.Error("payment for cancelled booking", "booking_id", bookingID, "event_id", ev.ID)
			return nil
		case bookingsvc.ErrNotFound:
			s.log.Error("payment for unknown booking", "booking_id", bookingID, "event_id", ev.ID)
			return nil
		}
		return err
	}
	return nil
}
