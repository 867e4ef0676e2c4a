package application

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fossawork/fossawork/internal/calculator"
	"github.com/fossawork/fossawork/internal/config"
	"github.com/fossawork/fossawork/internal/notify"
	"github.com/fossawork/fossawork/internal/scheduler"
	"github.com/fossawork/fossawork/internal/storage"
	"github.com/fossawork/fossawork/internal/workfossa"
)

// App encapsulates the daemon's dependencies.
type App struct {
	store     storage.Store
	calc      calculator.Calculator
	client    *workfossa.Client
	notifier  notify.Notifier
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// New initializes the application with all dependencies from the provided
// configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	calc := calculator.New()

	client, err := workfossa.NewClient(workfossa.ClientOptions{
		BaseURL:  cfg.PortalBaseURL,
		Username: cfg.PortalUsername,
		Password: cfg.PortalPassword,
		RateRPS:  cfg.ScrapeRateRPS,
		Burst:    cfg.ScrapeBurst,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("portal client: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			From:       cfg.SMTPFrom,
			Password:   cfg.SMTPPassword,
			Recipients: cfg.SMTPRecipients,
		}, logger)
	}

	sched := scheduler.New(client, store, calc, notifier, logger, scheduler.Options{
		Interval:       cfg.ScrapeInterval,
		NotifySeverity: cfg.NotifySeverity,
		ShutdownGrace:  cfg.ShutdownGracePeriod,
	})

	return &App{
		store:     store,
		calc:      calc,
		client:    client,
		notifier:  notifier,
		scheduler: sched,
		logger:    logger,
	}, nil
}

// RunDaemon runs the scrape/calculate/notify loop until ctx is cancelled.
func (a *App) RunDaemon(ctx context.Context) {
	a.scheduler.Run(ctx)
}

// ScrapeOnce refreshes the stored portal data once without notifying.
func (a *App) ScrapeOnce(ctx context.Context) error {
	return a.scheduler.Refresh(ctx)
}

// Recalculate runs the engine over the currently stored data.
func (a *App) Recalculate(ctx context.Context) (*calculator.Result, error) {
	return a.scheduler.Recalculate(ctx)
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// CalculateFromFiles runs one pure calculation from JSON input files,
// bypassing the store and portal entirely. overridesPath may be empty.
func CalculateFromFiles(calc calculator.Calculator, workOrdersPath, dispensersPath, overridesPath string) (*calculator.Result, error) {
	var orders []calculator.WorkOrder
	if err := readJSONFile(workOrdersPath, &orders); err != nil {
		return nil, fmt.Errorf("work orders: %w", err)
	}

	var dispensers []calculator.Dispenser
	if err := readJSONFile(dispensersPath, &dispensers); err != nil {
		return nil, fmt.Errorf("dispensers: %w", err)
	}

	overrides := calculator.Overrides{}
	if overridesPath != "" {
		if err := readJSONFile(overridesPath, &overrides); err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
	}

	return calc.Calculate(orders, dispensers, overrides)
}

func readJSONFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
