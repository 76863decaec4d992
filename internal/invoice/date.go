package invoice

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Date is a calendar day without time-of-day semantics. The zero value marks
// a missing or unparseable date.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to the calendar day it falls on in its own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses YYYY-MM-DD. RFC 3339 timestamps are accepted and truncated.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(DateLayout, value)
	if err == nil {
		return Date{t}, nil
	}
	if ts, tsErr := time.Parse(time.RFC3339, value); tsErr == nil {
		return DateOf(ts), nil
	}
	return Date{}, err
}

// Valid reports whether the date holds a real day.
func (d Date) Valid() bool {
	return !d.Time.IsZero()
}

// Equal compares two days.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// EndOfDay returns the last instant of the day in UTC.
func (d Date) EndOfDay() time.Time {
	return d.Time.Add(24*time.Hour - time.Nanosecond)
}

func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// MarshalJSON encodes the day as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON is lenient: values that do not parse leave the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}
