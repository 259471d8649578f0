package cli

import (
	"context"
	"errors"
	"fmt"

	"rapport/internal/backend"
	"rapport/internal/config"
	"rapport/internal/core"
	"rapport/internal/ledger"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/stats"
)

// App holds the services built from one configuration.
type App struct {
	Config     *config.Config
	Backend    *backend.BackendResult
	Allocator  *numbering.Allocator
	Issuer     *numbering.Issuer
	Aggregator *stats.Aggregator
	Reports    *report.Service
	Renderer   report.Renderer

	lock *backend.LockerResult
}

// Build wires ledger, numbering, statistics and report services.
func Build(ctx context.Context, cfg *config.Config, logger *rlog.Logger) (*App, error) {
	mode, err := numbering.ParseMode(cfg.NumberingMode)
	if err != nil {
		return nil, err
	}

	factory := backend.NewFactory(logger.For(rlog.ComponentBackend))
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	lock, err := factory.CreateLocker(ctx, backend.LockFromAppConfig(cfg))
	if err != nil {
		_ = be.Close()
		return nil, fmt.Errorf("create number lock: %w", err)
	}

	clock := core.SystemClock{Location: cfg.Location()}
	alloc := numbering.New(be.Ledger, numbering.Config{
		Mode:    mode,
		Timeout: cfg.LedgerTimeout,
		Clock:   clock,
		Logger:  logger.For(rlog.ComponentNumbering),
	})
	issuer := numbering.NewIssuer(alloc, be.Ledger, numbering.IssuerConfig{
		Locker:  lock.Locker,
		Timeout: cfg.LedgerTimeout,
		Logger:  logger.For(rlog.ComponentNumbering),
	})

	agg := stats.New(be.Ledger, stats.Config{
		Timeout: cfg.LedgerTimeout,
		Clock:   clock,
		Logger:  logger.For(rlog.ComponentStats),
	})
	reports := report.NewService(issuer, be.Events, report.Config{
		TaxRate:           cfg.Rate(),
		DefaultAccountRef: cfg.DefaultAccountRef,
		Clock:             clock,
		Logger:            logger.For(rlog.ComponentReport),
	})

	return &App{
		Config:     cfg,
		Backend:    be,
		Allocator:  alloc,
		Issuer:     issuer,
		Aggregator: agg,
		Reports:    reports,
		Renderer:   NewRenderer(cfg),
		lock:       lock,
	}, nil
}

// Ledger returns the configured ledger.
func (a *App) Ledger() ledger.Ledger { return a.Backend.Ledger }

// Close releases the backend and lock resources.
func (a *App) Close() error {
	var errs []error
	if a.lock != nil && a.lock.Cleanup != nil {
		errs = append(errs, a.lock.Cleanup())
	}
	errs = append(errs, a.Backend.Close())
	return errors.Join(errs...)
}

// Ready reports whether the ledger can be read right now.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.LedgerTimeout)
	defer cancel()
	if a.Backend.Storage != nil {
		return a.Backend.Storage.Ping(ctx)
	}
	_, err := a.Backend.Ledger.AllRows(ctx)
	return err
}
