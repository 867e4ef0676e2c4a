// Package scheduler drives the periodic scrape / recalculate / notify cycle.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fossawork/fossawork/internal/calculator"
	"github.com/fossawork/fossawork/internal/notify"
	"github.com/fossawork/fossawork/internal/storage"
)

// Source supplies fresh portal data. *workfossa.Client satisfies it.
type Source interface {
	Login(ctx context.Context) error
	FetchWorkOrders(ctx context.Context) ([]calculator.WorkOrder, error)
	FetchDispensers(ctx context.Context, storeNumber string) ([]calculator.Dispenser, error)
}

// Options tunes the scheduler loop.
type Options struct {
	// Interval between scheduled runs.
	Interval time.Duration
	// NotifySeverity is the minimum warning severity that triggers a
	// notification. A run with no warning at or above it stays quiet.
	NotifySeverity int
	// ShutdownGrace is how long an in-flight run may keep going after the
	// loop's context is cancelled, so a half-finished scrape or notification
	// is not cut off mid-send. Zero means runs are cancelled immediately.
	ShutdownGrace time.Duration
}

// Scheduler periodically refreshes portal data, recalculates filter
// requirements, and notifies when the result carries severe warnings.
type Scheduler struct {
	source   Source
	store    storage.Store
	calc     calculator.Calculator
	notifier notify.Notifier
	logger   *zap.Logger
	opts     Options
}

// New wires a scheduler. A nil notifier disables notifications.
func New(source Source, store storage.Store, calc calculator.Calculator, notifier notify.Notifier, logger *zap.Logger, opts Options) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &Scheduler{
		source:   source,
		store:    store,
		calc:     calc,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes the cycle immediately and then on every tick until the
// context is cancelled. A failed run is logged and the loop continues; one
// portal outage must not kill the daemon.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.opts.Interval))

	s.runLogged(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	if err := s.RunOnce(runCtx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// runContext derives the context for one run. With a grace period set, the
// run outlives a cancellation of ctx by up to that long before being cut off.
func (s *Scheduler) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ShutdownGrace <= 0 {
		return ctx, func() {}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		time.AfterFunc(s.opts.ShutdownGrace, cancel)
	})
	return runCtx, func() {
		stop()
		cancel()
	}
}

// RunOnce performs one full scrape / recalculate / notify cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	result, err := s.Recalculate(ctx)
	if err != nil {
		return err
	}

	if !s.shouldNotify(result) {
		return nil
	}
	if err := s.notifier.Send(ctx, result); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Refresh scrapes the portal and replaces the stored work orders and the
// dispensers of every store they reference.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if err := s.source.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	orders, err := s.source.FetchWorkOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch work orders: %w", err)
	}
	if err := s.store.SaveWorkOrders(ctx, orders); err != nil {
		return fmt.Errorf("save work orders: %w", err)
	}

	seen := make(map[string]struct{}, len(orders))
	for _, wo := range orders {
		if _, ok := seen[wo.StoreNumber]; ok {
			continue
		}
		seen[wo.StoreNumber] = struct{}{}

		dispensers, err := s.source.FetchDispensers(ctx, wo.StoreNumber)
		if err != nil {
			// A store page that fails to load becomes a missing_data warning
			// at calculation time rather than a fatal refresh error.
			s.logger.Warn("fetch dispensers failed",
				zap.String("store", wo.StoreNumber), zap.Error(err))
			continue
		}
		if err := s.store.SaveDispensers(ctx, wo.StoreNumber, dispensers); err != nil {
			return fmt.Errorf("save dispensers for store %s: %w", wo.StoreNumber, err)
		}
	}

	s.logger.Info("portal data refreshed",
		zap.Int("workOrders", len(orders)),
		zap.Int("stores", len(seen)),
	)
	return nil
}

// Recalculate runs the engine over everything currently stored.
func (s *Scheduler) Recalculate(ctx context.Context) (*calculator.Result, error) {
	orders, err := s.store.WorkOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load work orders: %w", err)
	}
	dispensers, err := s.store.Dispensers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dispensers: %w", err)
	}
	overrides, err := s.store.Overrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	result, err := s.calc.Calculate(orders, dispensers, overrides)
	if err != nil {
		return nil, fmt.Errorf("calculate: %w", err)
	}

	s.logger.Info("filters recalculated",
		zap.Int("jobs", result.Metadata.JobCount),
		zap.Int("totalFilters", result.TotalFilters),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *Scheduler) shouldNotify(result *calculator.Result) bool {
	if result.TotalFilters > 0 {
		return true
	}
	for _, w := range result.Warnings {
		if w.Severity >= s.opts.NotifySeverity {
			return true
		}
	}
	return false
}
