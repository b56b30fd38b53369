package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodEndDate_Days(t *testing.T) {
	p := TariffPeriod{DurationType: DurationDays, DurationValue: 30}

	require.Equal(t, date(2024, 1, 31), p.EndDate(date(2024, 1, 1)))

	p.DurationValue = 7
	require.Equal(t, date(2024, 3, 3), p.EndDate(date(2024, 2, 25)))
}

func TestPeriodEndDate_Months(t *testing.T) {
	p := TariffPeriod{DurationType: DurationMonths, DurationValue: 1}

	require.Equal(t, date(2024, 2, 1), p.EndDate(date(2024, 1, 1)))

	p.DurationValue = 12
	require.Equal(t, date(2025, 6, 15), p.EndDate(date(2024, 6, 15)))
}

func TestPeriodEndDate_MonthsClampToLastDay(t *testing.T) {
	p := TariffPeriod{DurationType: DurationMonths, DurationValue: 1}

	// Jan 31 lands on the last day of February, never overflows into
	// March.
	require.Equal(t, date(2024, 2, 29), p.EndDate(date(2024, 1, 31)))
	require.Equal(t, date(2023, 2, 28), p.EndDate(date(2023, 1, 31)))
	require.Equal(t, date(2024, 9, 30), p.EndDate(date(2024, 8, 31)))

	// Crossing a year boundary keeps the clamp.
	p.DurationValue = 12
	require.Equal(t, date(2025, 2, 28), p.EndDate(date(2024, 2, 29)))

	p.DurationValue = 2
	require.Equal(t, date(2024, 3, 31), p.EndDate(date(2024, 1, 31)))
}

func TestAvailability(t *testing.T) {
	a := Availability(10, 0)
	require.Equal(t, "fully_booked", a.Status)
	require.Equal(t, 0, a.Percent)

	a = Availability(10, 2)
	require.Equal(t, "few_left", a.Status)
	require.Equal(t, 20, a.Percent)

	a = Availability(10, 5)
	require.Equal(t, "available", a.Status)
	require.Equal(t, 50, a.Percent)

	// No units configured at all still reads as fully booked.
	a = Availability(0, 0)
	require.Equal(t, "fully_booked", a.Status)
}
