// Package core provides the ledger domain types and the parsing helpers
// shared by numbering and aggregation.
//
// This file contains functions for parsing monetary amounts from ledger
// cells and formatting them back in the comma-decimal convention.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a ledger money cell to a decimal.
//
// A leading or trailing currency marker ("€", "EUR") and whitespace are
// stripped. When the value contains a comma it is read in the European
// convention: dots are thousands separators and the comma is the decimal
// separator. Without a comma a single dot followed by one or two digits is
// taken as a decimal point (cells written by machines); any other dots are
// thousands separators. Negative values are accepted.
//
// Examples:
//
//	ParseAmount("1.234,50 €") -> 1234.50
//	ParseAmount("EUR 50,5")   -> 50.50
//	ParseAmount("150.5")      -> 150.50
//	ParseAmount("1.234")      -> 1234
func ParseAmount(s string) (decimal.Decimal, error) {
	s = stripCurrency(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\'' {
			return -1
		}
		return r
	}, s)

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") == 1:
		frac := s[strings.Index(s, ".")+1:]
		if len(frac) == 0 || len(frac) > 2 {
			s = strings.ReplaceAll(s, ".", "")
		}
	default:
		s = strings.ReplaceAll(s, ".", "")
	}

	if !isPlainNumber(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders d with two fraction digits and a decimal comma,
// without thousands separators, e.g. "1234,50".
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// TaxFromNet applies a flat tax rate to net, rounding the tax to cents.
func TaxFromNet(net, rate decimal.Decimal) (tax, gross decimal.Decimal) {
	tax = net.Mul(rate).Round(2)
	return tax, net.Add(tax)
}

// Cents returns d in the smallest currency unit, rounded half away from zero.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func stripCurrency(s string) string {
	s = strings.TrimSpace(s)
	for {
		before := s
		s = strings.TrimSpace(strings.TrimPrefix(s, "€"))
		s = strings.TrimSpace(strings.TrimSuffix(s, "€"))
		if len(s) >= 3 && strings.EqualFold(s[:3], "EUR") {
			s = strings.TrimSpace(s[3:])
		}
		if len(s) >= 3 && strings.EqualFold(s[len(s)-3:], "EUR") {
			s = strings.TrimSpace(s[:len(s)-3])
		}
		if s == before {
			return s
		}
	}
}

// isPlainNumber accepts an optional sign, digits and at most one dot.
func isPlainNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
