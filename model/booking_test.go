package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBookingStatusTerminal(t *testing.T) {
	require.True(t, BookingCompleted.Terminal())
	require.True(t, BookingCancelled.Terminal())

	for _, s := range []BookingStatus{BookingPending, BookingPaid, BookingActive, BookingExpired} {
		require.False(t, s.Terminal(), string(s))
	}
}

func TestDaysRemaining(t *testing.T) {
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	b := Booking{EndDate: today.AddDate(0, 0, 7)}
	require.Equal(t, 7, b.DaysRemaining(today))

	b.EndDate = today.AddDate(0, 0, -3)
	require.Equal(t, 0, b.DaysRemaining(today))
}

func TestIsExtension(t *testing.T) {
	var b Booking
	require.False(t, b.IsExtension())
	pid := int64(5)
	b.ParentID = &pid
	require.True(t, b.IsExtension())
}
