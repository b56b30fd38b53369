// Package clock is the time source for all lifecycle decisions.
// Services never call time.Now directly; date-driven rules are pure
// functions of stored timestamps vs. the injected clock.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a test clock pinned to a single instant.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }

// Date truncates t to midnight UTC. Booking start/end dates carry
// day precision only.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
