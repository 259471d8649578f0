package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger stored by RequestLogger, or a
// logger on slog.Default when there is none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// RequestLogger stores a per-request logger tagged with the method, the
// path and, when requestID yields one, the request id. requestID may be nil.
func RequestLogger(base *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			args := []any{FieldMethod, r.Method, FieldPath, r.URL.Path}
			if requestID != nil {
				if id := requestID(r); id != "" {
					args = append(args, FieldRequestID, id)
				}
			}
			ctx := NewContext(r.Context(), base.With(args...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EventLogger writes the request and report events of the API with a
// fixed field layout. Records go to the request logger when ctx has one.
type EventLogger struct {
	logger *Logger
}

func NewEventLogger(logger *Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (e *EventLogger) loggerFor(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return e.logger
}

// RequestStarted is logged at debug; RequestCompleted carries everything
// an operator needs.
func (e *EventLogger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)
	e.loggerFor(ctx).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

func (e *EventLogger) RequestCompleted(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, elapsed.Milliseconds(), status < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	e.loggerFor(ctx).Log(ctx, levelForStatus(status), "HTTP request completed", fields.ToSlice()...)
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// ReportFinalized logs a report that reached the ledger. A report numbered
// from a fallback is logged at warn so it can be checked by hand.
func (e *EventLogger) ReportFinalized(ctx context.Context, number, customer, net, gross, outcome string) {
	fields := NewFields().
		WithReport(number, customer, net, gross).
		WithOperation(OpFinalize)
	fields[FieldOutcome] = outcome

	level := slog.LevelInfo
	if outcome != "ok" {
		level = slog.LevelWarn
	}
	e.loggerFor(ctx).Log(ctx, level, "Report finalized", fields.ToSlice()...)
}

// Failure logs err with the component and operation it happened in.
func (e *EventLogger) Failure(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation).WithComponent(component)
	e.loggerFor(ctx).ErrorContext(ctx, msg, fields.ToSlice()...)
}
