package core

import (
	"errors"
	"strings"
	"time"
)

// LedgerDateLayout is the booking date format stored in the ledger.
const LedgerDateLayout = "02.01.2006"

// lenient layout: accepts one- or two-digit day and month.
const lenientDateLayout = "2.1.2006"

var ErrInvalidDate = errors.New("invalid date")

// ParseLedgerDate parses a DD.MM.YYYY cell in loc. Surrounding whitespace
// and a trailing time part ("01.06.2025 14:30") are ignored.
func ParseLedgerDate(s string, loc *time.Location) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(lenientDateLayout, fields[0], loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatLedgerDate renders t as DD.MM.YYYY.
func FormatLedgerDate(t time.Time) string {
	return t.Format(LedgerDateLayout)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameISOWeek reports whether a and b share ISO year and ISO week.
func SameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
