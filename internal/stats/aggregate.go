// Package stats computes the dashboard figures from raw ledger rows.
//
// Rows are human edited: unparsable dates drop a row, unparsable amounts
// count as zero. Neither is an error.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
	"rapport/internal/ledger"
)

// SeriesLength is the number of months in the trailing revenue series.
const SeriesLength = 6

// Report is a snapshot plus how it was obtained.
type Report struct {
	Snapshot core.AggregateSnapshot
	Outcome  core.Outcome
	// Err is the ledger error behind OutcomeLedgerUnavailable.
	Err error
	// Dropped counts rows skipped for an unparsable date.
	Dropped int
	// BadAmounts counts rows whose gross amount counted as zero.
	BadAmounts int
}

// Zero returns an empty snapshot with a non-nil series.
func Zero() core.AggregateSnapshot {
	return core.AggregateSnapshot{
		MonthlyGrossRevenue: decimal.Zero,
		MonthlySeries:       []core.PeriodRevenue{},
	}
}

// Aggregate summarises rows as seen at now. Row 0 holds the headers; the
// date and gross columns are found by header substring.
func Aggregate(rows [][]string, now time.Time, cols ledger.Columns) Report {
	if len(rows) == 0 {
		return Report{Snapshot: Zero(), Outcome: core.OutcomeOK}
	}
	cols = cols.WithDefaults()

	headers := rows[0]
	dateIdx, okDate := ledger.FindAnyColumn(headers, cols.Date...)
	grossIdx, okGross := ledger.FindAnyColumn(headers, cols.Gross...)
	if !okDate || !okGross {
		return Report{Snapshot: Zero(), Outcome: core.OutcomeMalformed}
	}

	var (
		rep     = Report{Outcome: core.OutcomeOK}
		snap    = Zero()
		current = core.PeriodOf(now)
		groups  = make(map[core.PeriodKey]decimal.Decimal)
	)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		date, err := core.ParseLedgerDate(ledger.Cell(row, dateIdx), now.Location())
		if err != nil {
			rep.Dropped++
			continue
		}

		gross, err := core.ParseAmount(ledger.Cell(row, grossIdx))
		if err != nil {
			rep.BadAmounts++
			gross = decimal.Zero
		}

		key := core.PeriodOf(date)
		groups[key] = groups[key].Add(gross)
		if key == current {
			snap.MonthlyGrossRevenue = snap.MonthlyGrossRevenue.Add(gross)
		}
		if core.SameDay(date, now) {
			snap.TodayCount++
		}
		if core.SameISOWeek(date, now) {
			snap.WeekCount++
		}
	}

	snap.MonthlySeries = series(groups)
	rep.Snapshot = snap
	return rep
}

// series returns the last SeriesLength groups in chronological order.
func series(groups map[core.PeriodKey]decimal.Decimal) []core.PeriodRevenue {
	keys := make([]core.PeriodKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	if len(keys) > SeriesLength {
		keys = keys[len(keys)-SeriesLength:]
	}

	out := make([]core.PeriodRevenue, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.PeriodRevenue{Period: k, Label: k.Label(), Gross: groups[k]})
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
