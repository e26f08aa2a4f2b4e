package clock

import "time"

// Clock is the only source of "now" for date-window checks.
type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
