package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
	"rapport/internal/ledger"
	"rapport/internal/ledger/memory"
	rlog "rapport/internal/log"
)

var headers = []string{"Document Number", "Date", "Customer", "Gross"}

func june(day int) time.Time {
	return time.Date(2025, time.June, day, 9, 30, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregateMonthlyGross(t *testing.T) {
	rows := [][]string{
		headers,
		{"B-2025-06-01", "01.06.2025", "Meyer", "100,00"},
		{"B-2025-06-02", "15.06.2025", "Schulz", "50,50"},
	}
	rep := Aggregate(rows, june(20), ledger.DefaultColumns())
	if rep.Outcome != core.OutcomeOK {
		t.Fatalf("outcome %v", rep.Outcome)
	}
	if !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("150.50")) {
		t.Fatalf("monthly gross = %s, want 150.50", rep.Snapshot.MonthlyGrossRevenue)
	}
}

func TestAggregateEmpty(t *testing.T) {
	for name, rows := range map[string][][]string{
		"no rows":     nil,
		"header only": {headers},
	} {
		t.Run(name, func(t *testing.T) {
			rep := Aggregate(rows, june(20), ledger.DefaultColumns())
			if rep.Outcome != core.OutcomeOK || !rep.Snapshot.IsZero() || rep.Snapshot.MonthlySeries == nil {
				t.Fatalf("expected zero snapshot, got %+v", rep)
			}
		})
	}
}

func TestAggregateDropsBadDates(t *testing.T) {
	rows := [][]string{
		headers,
		{"B-2025-06-01", "01.06.2025", "Meyer", "100,00"},
		{"B-2025-06-02", "not-a-date", "Schulz", "999,00"},
		{"B-2025-06-03", "20.06.2025", "Weber", "10,00"},
	}
	rep := Aggregate(rows, june(20), ledger.DefaultColumns())
	if rep.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", rep.Dropped)
	}
	if !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("110")) {
		t.Fatalf("monthly gross = %s, want 110", rep.Snapshot.MonthlyGrossRevenue)
	}
	if rep.Snapshot.TodayCount != 1 {
		t.Fatalf("today = %d, want 1", rep.Snapshot.TodayCount)
	}
}

func TestAggregateBadAmountStillCounts(t *testing.T) {
	rows := [][]string{
		headers,
		{"B-2025-06-01", "20.06.2025", "Meyer", "n/a"},
		{"B-2025-06-02", "20.06.2025 14:10", "Schulz", "1.234,56 €"},
		{"B-2025-06-03", "20.06.2025"},
	}
	rep := Aggregate(rows, june(20), ledger.DefaultColumns())
	if rep.Snapshot.TodayCount != 3 || rep.Snapshot.WeekCount != 3 {
		t.Fatalf("counts today=%d week=%d, want 3/3", rep.Snapshot.TodayCount, rep.Snapshot.WeekCount)
	}
	if rep.BadAmounts != 2 {
		t.Fatalf("bad amounts = %d, want 2", rep.BadAmounts)
	}
	if !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("1234.56")) {
		t.Fatalf("monthly gross = %s", rep.Snapshot.MonthlyGrossRevenue)
	}
}

func TestAggregateISOWeek(t *testing.T) {
	// Monday 29.12.2025 to Sunday 04.01.2026 is ISO week 1 of 2026.
	now := time.Date(2026, time.January, 2, 12, 0, 0, 0, time.UTC)
	rows := [][]string{
		headers,
		{"a", "28.12.2025", "", "1,00"},
		{"b", "29.12.2025", "", "1,00"},
		{"c", "31.12.2025", "", "1,00"},
		{"d", "2.1.2026", "", "1,00"},
		{"e", "05.01.2026", "", "1,00"},
	}
	rep := Aggregate(rows, now, ledger.DefaultColumns())
	if rep.Snapshot.WeekCount != 3 {
		t.Fatalf("week count = %d, want 3", rep.Snapshot.WeekCount)
	}
	if rep.Snapshot.TodayCount != 1 {
		t.Fatalf("today count = %d, want 1", rep.Snapshot.TodayCount)
	}
	// January only holds d and e.
	if !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("2")) {
		t.Fatalf("monthly gross = %s, want 2", rep.Snapshot.MonthlyGrossRevenue)
	}
}

func TestAggregateSeries(t *testing.T) {
	rows := [][]string{headers}
	// Unordered rows over eight months.
	for _, r := range [][2]string{
		{"03.06.2025", "10,00"},
		{"03.11.2024", "1,00"},
		{"03.01.2025", "3,00"},
		{"03.12.2024", "2,00"},
		{"03.02.2025", "4,00"},
		{"04.02.2025", "4,00"},
		{"03.03.2025", "5,00"},
		{"03.04.2025", "6,00"},
		{"03.05.2025", "7,00"},
	} {
		rows = append(rows, []string{"x", r[0], "", r[1]})
	}
	rep := Aggregate(rows, june(20), ledger.DefaultColumns())
	got := rep.Snapshot.MonthlySeries
	want := []struct {
		label string
		gross string
	}{
		{"2025-01", "3"}, {"2025-02", "8"}, {"2025-03", "5"},
		{"2025-04", "6"}, {"2025-05", "7"}, {"2025-06", "10"},
	}
	if len(got) != len(want) {
		t.Fatalf("series length %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Label != w.label || !got[i].Gross.Equal(dec(w.gross)) {
			t.Errorf("series[%d] = %s %s, want %s %s", i, got[i].Label, got[i].Gross, w.label, w.gross)
		}
	}
}

func TestAggregateMissingColumns(t *testing.T) {
	rows := [][]string{
		{"Nr", "Kunde", "Betrag"},
		{"B-2025-06-01", "Meyer", "100,00"},
	}
	rep := Aggregate(rows, june(20), ledger.DefaultColumns())
	if rep.Outcome != core.OutcomeMalformed || !rep.Snapshot.IsZero() {
		t.Fatalf("expected malformed zero snapshot, got %+v", rep)
	}
}

func TestAggregateGermanHeaders(t *testing.T) {
	rows := [][]string{
		{"Rechnungsnr.", "Datum", "Kunde", "Netto", "MwSt", "Brutto"},
		{"B-2025-06-01", "02.06.2025", "Meyer", "100,00", "19,00", "119,00"},
	}
	rep := Aggregate(rows, june(20), ledger.Columns{})
	if !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("119")) {
		t.Fatalf("monthly gross = %s, want 119", rep.Snapshot.MonthlyGrossRevenue)
	}
}

type brokenReader struct{}

func (brokenReader) AllRows(context.Context) ([][]string, error) {
	return nil, ledger.ErrUnavailable
}

func TestAggregatorSnapshot(t *testing.T) {
	store := memory.New(headers,
		[]string{"B-2025-06-01", "01.06.2025", "Meyer", "100,00"},
		[]string{"B-2025-06-02", "15.06.2025", "Schulz", "50,50"},
	)
	agg := New(store, Config{Clock: core.FixedClock(june(20)), Logger: rlog.Discard()})
	rep := agg.Snapshot(context.Background())
	if rep.Outcome != core.OutcomeOK || !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("150.5")) {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Snapshot.MonthlySeries) != 1 || rep.Snapshot.MonthlySeries[0].Label != "2025-06" {
		t.Fatalf("unexpected series: %+v", rep.Snapshot.MonthlySeries)
	}

	// Appended rows are visible on the next call.
	_ = store.AppendRow(context.Background(), []string{"B-2025-06-03", "20.06.2025", "Weber", "9,50"})
	if rep := agg.Snapshot(context.Background()); !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("160")) || rep.Snapshot.TodayCount != 1 {
		t.Fatalf("expected fresh read, got %+v", rep.Snapshot)
	}
}

func TestAggregatorLedgerUnavailable(t *testing.T) {
	agg := New(brokenReader{}, Config{Clock: core.FixedClock(june(20)), Logger: rlog.Discard()})
	rep := agg.Snapshot(context.Background())
	if rep.Outcome != core.OutcomeLedgerUnavailable || !errors.Is(rep.Err, ledger.ErrUnavailable) || !rep.Snapshot.IsZero() {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAggregatorKeepsCustomColumns(t *testing.T) {
	store := memory.New([]string{"Beleg", "Datum", "Summe"},
		[]string{"B-2025-06-01", "03.06.2025", "80,00"},
	)
	agg := New(store, Config{
		Columns: ledger.Columns{Gross: []string{"summe"}},
		Clock:   core.FixedClock(june(20)),
		Logger:  rlog.Discard(),
	})
	rep := agg.Snapshot(context.Background())
	if rep.Outcome != core.OutcomeOK || !rep.Snapshot.MonthlyGrossRevenue.Equal(dec("80")) {
		t.Fatalf("expected the custom gross column to be used, got %+v", rep)
	}
}
