package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"rapport/internal/core"
	"rapport/internal/ledger"
	"rapport/internal/ledger/memory"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/stats"
)

var testNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

type downLedger struct{}

func (downLedger) AllRows(context.Context) ([][]string, error) { return nil, ledger.ErrUnavailable }
func (downLedger) AppendRow(context.Context, []string) error   { return ledger.ErrUnavailable }

type testEnv struct {
	server *Server
	store  *memory.Store
}

func newTestServer(t *testing.T, l ledger.Ledger, strict bool, cfg Config) *Server {
	t.Helper()
	clock := core.FixedClock(testNow)
	alloc := numbering.New(l, numbering.Config{Clock: clock, Logger: rlog.Discard()})
	issuer := numbering.NewIssuer(alloc, l, numbering.IssuerConfig{Strict: strict, Logger: rlog.Discard()})
	agg := stats.New(l, stats.Config{Clock: clock, Logger: rlog.Discard()})
	reports := report.NewService(issuer, nil, report.Config{Clock: clock, Logger: rlog.Discard()})

	cfg.Location = time.UTC
	cfg.Logger = rlog.New(rlog.Config{Output: io.Discard})
	s := NewServer(cfg, alloc, agg, reports)
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	store := memory.New(ledger.DefaultHeaders,
		[]string{"B-2025-03-06", "06.03.2025", "Meyer", "Heizung", "100,00", "19,00", "119,00", "10000"},
		[]string{"B-2025-03-07", "15.03.2025", "Schulz", "Rohrbruch", "50,00", "9,50", "59,50", "10000"},
	)
	return testEnv{server: newTestServer(t, store, false, Config{}), store: store}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	rr := do(t, env.server, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing security headers")
	}
}

func TestReady(t *testing.T) {
	cases := []struct {
		name  string
		ready func(context.Context) error
		want  int
	}{
		{"no readiness check", nil, http.StatusOK},
		{"ledger ok", func(context.Context) error { return nil }, http.StatusOK},
		{"ledger down", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, memory.New(ledger.DefaultHeaders), false, Config{Ready: tc.ready})
			if rr := do(t, s, http.MethodGet, "/readyz", ""); rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestNextNumber(t *testing.T) {
	env := newEnv(t)
	rr := do(t, env.server, http.MethodGet, "/api/numbers/next", "")
	got := decode[numberResponse](t, rr)
	if rr.Code != http.StatusOK || got.Number != "B-2025-03-08" || got.Period != "B-2025-03" || got.Fallback {
		t.Fatalf("unexpected response %d %+v", rr.Code, got)
	}
}

func TestNextNumberFallback(t *testing.T) {
	s := newTestServer(t, downLedger{}, false, Config{})
	got := decode[numberResponse](t, do(t, s, http.MethodGet, "/api/numbers/next", ""))
	if got.Number != "B-2025-03-01" || !got.Fallback || got.Outcome != core.OutcomeLedgerUnavailable.String() {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestDashboard(t *testing.T) {
	env := newEnv(t)
	got := decode[dashboardResponse](t, do(t, env.server, http.MethodGet, "/api/dashboard", ""))
	if got.MonthlyGrossRevenue != "178,50" || got.TodayCount != 1 || got.WeekCount != 1 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
	if len(got.MonthlySeries) != 1 || got.MonthlySeries[0].Label != "2025-03" || got.MonthlySeries[0].Gross != "178,50" {
		t.Fatalf("unexpected series %+v", got.MonthlySeries)
	}
}

func TestOverview(t *testing.T) {
	env := newEnv(t)
	rr := do(t, env.server, http.MethodGet, "/api/overview", "")
	got := decode[overviewResponse](t, rr)
	if rr.Code != http.StatusOK || got.NextNumber.Number != "B-2025-03-08" || got.Dashboard.MonthlyGrossRevenue != "178,50" {
		t.Fatalf("unexpected overview %d %+v", rr.Code, got)
	}
}

func TestCreateReport(t *testing.T) {
	env := newEnv(t)
	body := `{"customer_name":"Weber","description":"Therme getauscht","net":"1.000,00","date":"14.03.2025"}`
	rr := do(t, env.server, http.MethodPost, "/api/reports", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[reportResponse](t, rr)
	want := reportResponse{
		DocumentNumber: "B-2025-03-08",
		Date:           "14.03.2025",
		CustomerName:   "Weber",
		Description:    "Therme getauscht",
		Net:            "1000,00",
		Tax:            "190,00",
		Gross:          "1190,00",
		AccountRef:     core.DefaultAccountRef,
		NumberOutcome:  core.OutcomeOK.String(),
	}
	if got != want {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
	if env.store.Len() != 4 {
		t.Fatalf("expected row appended, ledger has %d rows", env.store.Len())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/reports/B-2025-03-08" {
		t.Errorf("location = %q", loc)
	}

	// The next proposal follows the new row.
	next := decode[numberResponse](t, do(t, env.server, http.MethodGet, "/api/numbers/next", ""))
	if next.Number != "B-2025-03-09" {
		t.Fatalf("next = %q", next.Number)
	}
}

func TestCreateReportRejects(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		fields []string
	}{
		{"bad json", `{"customer_name":`, http.StatusBadRequest, nil},
		{"unknown field", `{"customer":"x"}`, http.StatusBadRequest, nil},
		{"missing net", `{"customer_name":"Weber","description":"x"}`, http.StatusUnprocessableEntity, []string{"net"}},
		{"bad date", `{"customer_name":"Weber","description":"x","net":"10","date":"2025-03-14"}`, http.StatusUnprocessableEntity, []string{"date"}},
		{"empty draft", `{"net":"10,00"}`, http.StatusUnprocessableEntity, []string{"customer_name", "description"}},
		{"negative", `{"customer_name":"Weber","description":"x","net":"-5"}`, http.StatusUnprocessableEntity, []string{"net"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t)
			rr := do(t, env.server, http.MethodPost, "/api/reports", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.status, rr.Body.String())
			}
			got := decode[errorResponse](t, rr)
			if !slices.Equal(got.Fields, tc.fields) {
				t.Fatalf("fields = %v, want %v", got.Fields, tc.fields)
			}
			if env.store.Len() != 3 {
				t.Fatalf("nothing should be appended")
			}
		})
	}
}

func TestCreateReportLedgerDown(t *testing.T) {
	body := `{"customer_name":"Weber","description":"x","net":"10,00"}`

	strict := newTestServer(t, downLedger{}, true, Config{})
	if rr := do(t, strict, http.MethodPost, "/api/reports", body); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("strict: status = %d", rr.Code)
	}

	lenient := newTestServer(t, downLedger{}, false, Config{})
	if rr := do(t, lenient, http.MethodPost, "/api/reports", body); rr.Code != http.StatusInternalServerError {
		t.Fatalf("lenient: status = %d", rr.Code)
	}
}

func TestCreateReportRateLimited(t *testing.T) {
	store := memory.New(ledger.DefaultHeaders)
	s := newTestServer(t, store, false, Config{RateLimitPerMinute: 1})
	body := `{"customer_name":"Weber","description":"x","net":"10,00"}`

	if rr := do(t, s, http.MethodPost, "/api/reports", body); rr.Code != http.StatusCreated {
		t.Fatalf("first: status = %d", rr.Code)
	}
	rr := do(t, s, http.MethodPost, "/api/reports", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second: status = %d, retry-after %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	// Reads are not limited.
	if rr := do(t, s, http.MethodGet, "/api/dashboard", ""); rr.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rr.Code)
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	env := newEnv(t)
	if rr := do(t, env.server, http.MethodGet, "/api/dashboard?x=../../etc/passwd", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
