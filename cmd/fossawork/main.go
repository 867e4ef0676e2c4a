package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fossawork/fossawork/internal/application"
	"github.com/fossawork/fossawork/internal/calculator"
	"github.com/fossawork/fossawork/internal/config"
	"github.com/fossawork/fossawork/internal/logging"
	"github.com/fossawork/fossawork/internal/notify"
)

const scrapeTimeout = 10 * time.Minute

func main() {
	// credentials usually live in a local .env during development
	_ = godotenv.Load()

	kingpinApp := kingpin.New("fossawork", "FossaWork - calculates dispenser filter requirements from WorkFossa work orders")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	dbPath := kingpinApp.Flag("db", "Path to the SQLite database").String()
	portalURL := kingpinApp.Flag("portal-url", "WorkFossa portal base URL").String()
	verbose := kingpinApp.Flag("verbose", "Enable debug logging").Short('v').Bool()

	calculateCmd := kingpinApp.Command("calculate", "Calculate filter requirements from JSON input files")
	workOrdersFile := calculateCmd.Flag("work-orders", "JSON file with work orders").Required().String()
	dispensersFile := calculateCmd.Flag("dispensers", "JSON file with dispensers").Required().String()
	overridesFile := calculateCmd.Flag("overrides", "JSON file with quantity overrides").String()
	outputFile := calculateCmd.Flag("output", "Write the result to this file instead of stdout").String()
	asText := calculateCmd.Flag("text", "Render a plain-text report instead of JSON").Bool()

	scrapeCmd := kingpinApp.Command("scrape", "Scrape the portal once and store the data")

	daemonCmd := kingpinApp.Command("daemon", "Run the periodic scrape, calculate and notify loop")
	intervalFlag := daemonCmd.Flag("interval", "Time between scheduled runs").Duration()
	severityFlag := daemonCmd.Flag("notify-severity", "Minimum warning severity that triggers a notification").Default("-1").Int()

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	logger, err := newLogger(*verbose)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}
	if *dbPath != "" {
		overrides.DatabasePath = dbPath
	}
	if *portalURL != "" {
		overrides.PortalBaseURL = portalURL
	}
	if *intervalFlag > 0 {
		overrides.ScrapeInterval = intervalFlag
	}
	if *severityFlag >= 0 {
		overrides.NotifySeverity = severityFlag
	}

	switch command {
	case calculateCmd.FullCommand():
		runCalculate(logger, *workOrdersFile, *dispensersFile, *overridesFile, *outputFile, *asText)

	case scrapeCmd.FullCommand():
		runScrape(logger, overrides)

	case daemonCmd.FullCommand():
		runDaemon(logger, overrides)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return logging.NewVerbose()
	}
	return logging.New()
}

// runCalculate is the pure path: JSON files in, report out, no portal and no
// database involved.
func runCalculate(logger *zap.Logger, workOrdersFile, dispensersFile, overridesFile, outputFile string, asText bool) {
	result, err := application.CalculateFromFiles(calculator.New(), workOrdersFile, dispensersFile, overridesFile)
	if err != nil {
		logger.Fatal("calculation failed", zap.Error(err))
	}

	var rendered []byte
	if asText {
		rendered = []byte(notify.RenderText(result))
	} else {
		rendered, err = json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatal("failed to encode result", zap.Error(err))
		}
		rendered = append(rendered, '\n')
	}

	if outputFile == "" {
		if _, err := os.Stdout.Write(rendered); err != nil {
			logger.Fatal("failed to write result", zap.Error(err))
		}
		return
	}
	if err := os.WriteFile(outputFile, rendered, 0o644); err != nil {
		logger.Fatal("failed to write result", zap.Error(err))
	}
	logger.Info("result written", zap.String("path", outputFile))
}

func runScrape(logger *zap.Logger, overrides *config.CLIOverrides) {
	cfg, err := config.Load(overrides)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		_ = app.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	if err := app.ScrapeOnce(ctx); err != nil {
		logger.Fatal("scrape failed", zap.Error(err))
	}
}

func runDaemon(logger *zap.Logger, overrides *config.CLIOverrides) {
	cfg, err := config.Load(overrides)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		_ = app.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.RunDaemon(ctx)
	logger.Info("shutting down")
}
