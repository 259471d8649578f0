// Package numbering derives the next document number from the numbers
// already present in the ledger.
//
// Numbers are scoped by calendar month ("B-2025-03-07") or, in legacy
// mode, are plain increasing integers ("2025001"). Only the last ledger
// entry is inspected: the ledger is assumed to be append-only and in
// chronological order. Manual edits that break this assumption produce
// duplicate or restarted numbers.
package numbering

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"rapport/internal/core"
)

// Mode selects the numbering scheme.
type Mode int

const (
	// ModePeriod numbers documents per month: B-YYYY-MM-NN.
	ModePeriod Mode = iota
	// ModeLegacy numbers documents with one increasing integer.
	ModeLegacy
)

// LegacyFallback is the first legacy number.
const LegacyFallback = "2025001"

func (m Mode) String() string {
	if m == ModeLegacy {
		return "legacy"
	}
	return "period"
}

// ParseMode accepts "period" (or empty) and "legacy".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "period":
		return ModePeriod, nil
	case "legacy":
		return ModeLegacy, nil
	default:
		return ModePeriod, fmt.Errorf("unknown numbering mode %q", s)
	}
}

// NextNumber returns the number following the last entry of ledgerNumbers.
// ledgerNumbers is the whole number column, header cell included. It never
// fails: anything it can't continue restarts the sequence.
func NextNumber(ledgerNumbers []string, now time.Time, mode Mode) string {
	n, _ := inspect(ledgerNumbers, now, mode)
	return n
}

// FallbackNumber is the number used when the ledger gives nothing to
// continue from.
func FallbackNumber(now time.Time, mode Mode) string {
	if mode == ModeLegacy {
		return LegacyFallback
	}
	return core.PeriodOf(now).Prefix() + "-01"
}

// LockKey names the allocation bucket now falls into.
func LockKey(now time.Time, mode Mode) string {
	if mode == ModeLegacy {
		return "legacy"
	}
	return core.PeriodOf(now).Prefix()
}

// inspect computes the next number and whether the last entry was usable.
// In period mode a plain integer is a legacy number preceding the switch
// and restarts the month without being reported as malformed.
func inspect(ledgerNumbers []string, now time.Time, mode Mode) (string, core.Outcome) {
	fallback := FallbackNumber(now, mode)
	if len(ledgerNumbers) < 2 {
		return fallback, core.OutcomeOK
	}
	last := strings.TrimSpace(ledgerNumbers[len(ledgerNumbers)-1])

	if mode == ModeLegacy {
		if last == "" {
			return fallback, core.OutcomeOK
		}
		if !allDigits(last) {
			return fallback, core.OutcomeMalformed
		}
		n, ok := new(big.Int).SetString(last, 10)
		if !ok {
			return fallback, core.OutcomeMalformed
		}
		return n.Add(n, big.NewInt(1)).String(), core.OutcomeOK
	}

	prefix := core.PeriodOf(now).Prefix()
	if !strings.HasPrefix(last, prefix) {
		if last == "" || allDigits(last) || wellFormed(last) {
			return fallback, core.OutcomeOK
		}
		return fallback, core.OutcomeMalformed
	}
	parts := strings.Split(last, "-")
	if len(parts) != 4 {
		return fallback, core.OutcomeMalformed
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil {
		return fallback, core.OutcomeMalformed
	}
	return fmt.Sprintf("%s-%02d", prefix, seq+1), core.OutcomeOK
}

// wellFormed reports whether s looks like a period number of any month.
func wellFormed(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 4 || parts[0] != "B" {
		return false
	}
	for _, p := range parts[1:] {
		if !allDigits(p) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
