// model/visit.go
package model

import "time"

type TokenType string

const (
	TokenOwner TokenType = "owner"
	TokenGuest TokenType = "guest"
)

type AccessToken struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	Token     string    `json:"token"`
	TokenType TokenType `json:"token_type"`

	// Filled at scan time for guest tokens.
	GuestName string `json:"guest_name,omitempty"`

	ExpiresAt time.Time  `json:"expires_at"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Consumable: guest tokens burn on first scan, owner tokens are
// reusable until natural expiry.
func (t *AccessToken) Consumed() bool {
	return t.TokenType == TokenGuest && t.IsUsed
}

type Visit struct {
	ID        int64 `json:"id"`
	BookingID int64 `json:"booking_id"`

	// Weak reference: the token row may expire out of rotation, but the
	// visit record is permanent.
	AccessTokenID *int64 `json:"access_token_id,omitempty"`

	VisitorType TokenType `json:"visitor_type"`
	VisitorName string    `json:"visitor_name"`
	ScannedByID *int64    `json:"scanned_by_id,omitempty"`
	VisitedAt   time.Time `json:"visited_at"`
	UnitCode    string    `json:"unit_code,omitempty"`
}
