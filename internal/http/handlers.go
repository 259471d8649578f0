package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rapport/internal/core"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/stats"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, fields ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Fields: fields})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the ledger answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			checks["ledger"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["ledger"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboardDTO(s.snaps.Snapshot(r.Context())))
}

func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, numberDTO(s.numbers.Next(r.Context())))
}

// handleOverview reads the next number and the dashboard concurrently.
// Each reads the ledger on its own.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	var (
		next numbering.Result
		snap stats.Report
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		next = s.numbers.Next(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		snap = s.snaps.Snapshot(ctx)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		NextNumber: numberDTO(next),
		Dashboard:  dashboardDTO(snap),
	})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req reportRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, fields := s.parseDraft(req)
	if len(fields) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "invalid report", fields...)
		return
	}

	fin, err := s.reports.Finalize(r.Context(), draft)
	switch {
	case err == nil:
	case errors.Is(err, report.ErrInvalidDraft):
		writeError(w, http.StatusUnprocessableEntity, "invalid report", draftFields(err)...)
		return
	case errors.Is(err, numbering.ErrLedgerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable, try again later")
		return
	default:
		s.events.Failure(r.Context(), "Failed to finalize report", err,
			rlog.ComponentHTTP, rlog.OpFinalize, rlog.NewFields().WithCustomer(draft.CustomerName))
		writeError(w, http.StatusInternalServerError, "report could not be recorded")
		return
	}

	resp := reportDTO(fin)
	s.events.ReportFinalized(r.Context(), resp.DocumentNumber, resp.CustomerName,
		resp.Net, resp.Gross, resp.NumberOutcome)
	w.Header().Set("Location", "/api/reports/"+resp.DocumentNumber)
	writeJSON(w, http.StatusCreated, resp)
}

// parseDraft converts the request and names every field it could not read.
func (s *Server) parseDraft(req reportRequest) (report.Draft, []string) {
	var fields []string
	d := report.Draft{
		CustomerName: req.CustomerName,
		Address:      req.Address,
		Description:  req.Description,
		Urgency:      req.Urgency,
		AccountRef:   req.AccountRef,
	}

	net, err := core.ParseAmount(req.Net)
	if err != nil {
		fields = append(fields, "net")
	}
	d.Net = net

	if strings.TrimSpace(req.Date) != "" {
		date, err := core.ParseLedgerDate(req.Date, s.location)
		if err != nil {
			fields = append(fields, "date")
		}
		d.Date = date
	}
	return d, fields
}

func draftFields(err error) []string {
	var fields []string
	for _, f := range []struct {
		err  error
		name string
	}{
		{core.ErrEmptyCustomer, "customer_name"},
		{core.ErrEmptyDescription, "description"},
		{core.ErrNegativeAmount, "net"},
	} {
		if errors.Is(err, f.err) {
			fields = append(fields, f.name)
		}
	}
	return fields
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	rlog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		rlog.FieldClientIP, s.detector.ExtractClientIP(r),
		rlog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}
