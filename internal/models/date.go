package models

import (
	"fmt"
	"time"
)

// Date format constants. Employees type dates as DD.MM.YYYY; the store
// serializes them as ISO 8601.
const (
	dateLayoutISO   = "2006-01-02"
	dateLayoutUser  = "02.01.2006"
	dateLayoutLabel = "02.01"
)

// Date is a calendar date without a time-of-day component.
// The zero value is the zero date and is never a valid status boundary.
type Date struct {
	t time.Time
}

// NewDate constructs a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseISODate parses an ISO 8601 date (YYYY-MM-DD) as used in the store.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(dateLayoutISO, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid ISO date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// ParseUserDate parses exactly the DD.MM.YYYY pattern employees type in chat.
// Any other shape is an error, never a crash.
func ParseUserDate(s string) (Date, error) {
	t, err := time.Parse(dateLayoutUser, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// ISO renders the date as YYYY-MM-DD.
func (d Date) ISO() string { return d.t.Format(dateLayoutISO) }

// Format renders the date as DD.MM.YYYY for user-facing messages.
func (d Date) Format() string { return d.t.Format(dateLayoutUser) }

// Label renders the short DD.MM day label used in schedule reports.
func (d Date) Label() string { return d.t.Format(dateLayoutLabel) }

func (d Date) String() string { return d.ISO() }

// MarshalJSON encodes the date as an ISO 8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

// UnmarshalJSON decodes an ISO 8601 date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid date JSON: %s", data)
	}
	parsed, err := ParseISODate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
