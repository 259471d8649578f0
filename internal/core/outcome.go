package core

import "time"

// Outcome tells a caller why a fallback value was returned, if it was.
type Outcome int

const (
	// OutcomeOK means the value was derived from a readable, well-formed ledger.
	OutcomeOK Outcome = iota
	// OutcomeLedgerUnavailable means the ledger could not be read.
	OutcomeLedgerUnavailable
	// OutcomeMalformed means the ledger was read but its content could not be used.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeLedgerUnavailable:
		return "ledger_unavailable"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, optionally in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
