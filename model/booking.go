// model/booking.go
package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingPaid      BookingStatus = "paid"
	BookingActive    BookingStatus = "active"
	BookingExpired   BookingStatus = "expired"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition can leave s.
// EXPIRED is terminal for the sweep; only a manual release moves it
// to COMPLETED.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	TariffID int64 `json:"tariff_id"`
	PeriodID int64 `json:"period_id"`

	// Nil until allocation succeeds (root) or copied from the parent
	// (extension).
	StorageUnitID *int64 `json:"storage_unit_id,omitempty"`

	// Extensions reference the booking they prolong and share its unit.
	ParentID *int64 `json:"parent_id,omitempty"`

	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    BookingStatus `json:"status"`

	// Price snapshot, fixed at creation. TotalAed is always the sum of
	// the three components.
	PriceAed   float64 `json:"price_aed"`
	AddonsAed  float64 `json:"addons_aed"`
	DepositAed float64 `json:"deposit_aed"`
	TotalAed   float64 `json:"total_aed"`

	StripeSessionID string `json:"stripe_session_id,omitempty"`
	StripePaymentID string `json:"stripe_payment_id,omitempty"`

	// Payment deadline, meaningful while PENDING.
	ExpiresAt time.Time  `json:"expires_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b *Booking) IsExtension() bool { return b.ParentID != nil }

// DaysRemaining until the end date, never negative.
func (b *Booking) DaysRemaining(today time.Time) int {
	d := int(b.EndDate.Sub(today).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// BookingAddon is a priced selection, immutable once created.
type BookingAddon struct {
	ID        int64   `json:"id"`
	BookingID int64   `json:"booking_id"`
	AddonID   int64   `json:"addon_id"`
	PriceAed  float64 `json:"price_aed"`
}
