// Package models defines the core domain entities: calendar dates, dated event
// records, per-record analysis rows and the statistics produced from them.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Date is a calendar date without time of day or zone.
// It serializes as YYYY-MM-DD text.
type Date struct {
	Year  int
	Month int
	Day   int
}

// NewDate builds a Date from its components.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseDate accepts ISO-8601 dates, RFC 3339 timestamps, a bare year of one
// to four digits (mapped to January 1st) and anything else dateparse
// recognizes.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("date must not be empty")
	}
	if len(s) <= 4 {
		year, err := parseYear(s)
		if err != nil {
			return Date{}, fmt.Errorf("invalid year %q: %w", s, err)
		}
		return Date{Year: year, Month: 1, Day: 1}, nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func parseYear(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("year must be digits only")
		}
	}
	return strconv.Atoi(s)
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate checks that month and day are in calendar range.
func (d Date) Validate() error {
	if d.Month < 1 || d.Month > 12 {
		return errors.New("month must be between 1 and 12")
	}
	if d.Day < 1 || d.Day > 31 {
		return errors.New("day must be between 1 and 31")
	}
	return nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
