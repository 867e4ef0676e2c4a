package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDatabasePath   = "fossawork.db"
	defaultPortalBaseURL  = "https://app.workfossa.com"
	defaultScrapeInterval = time.Hour
	defaultScrapeRateRPS  = 2.0
	defaultScrapeBurst    = 4
	defaultNotifySeverity = 5
	defaultSMTPPort       = 587
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	DatabasePath        string
	PortalBaseURL       string
	PortalUsername      string
	PortalPassword      string
	ScrapeInterval      time.Duration
	ScrapeRateRPS       float64
	ScrapeBurst         int
	NotifySeverity      int
	SMTPHost            string
	SMTPPort            int
	SMTPFrom            string
	SMTPPassword        string
	SMTPRecipients      []string
	ShutdownGracePeriod time.Duration
}

// yamlConfig represents the YAML configuration file structure. Credentials
// are intentionally absent: the portal and SMTP passwords come from the
// environment only.
type yamlConfig struct {
	DatabasePath   string         `yaml:"database_path"`
	Portal         yamlPortal     `yaml:"portal"`
	ScrapeInterval string         `yaml:"scrape_interval"`
	ScrapeRate     yamlScrapeRate `yaml:"scrape_rate"`
	NotifySeverity *int           `yaml:"notify_severity"`
	SMTP           yamlSMTP       `yaml:"smtp"`
	ShutdownGrace  string         `yaml:"shutdown_grace_period"`
}

type yamlPortal struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
}

type yamlScrapeRate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type yamlSMTP struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	DatabasePath   *string
	PortalBaseURL  *string
	ScrapeInterval *time.Duration
	NotifySeverity *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	applyEnvConfig(&cfg)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		DatabasePath:        defaultDatabasePath,
		PortalBaseURL:       defaultPortalBaseURL,
		ScrapeInterval:      defaultScrapeInterval,
		ScrapeRateRPS:       defaultScrapeRateRPS,
		ScrapeBurst:         defaultScrapeBurst,
		NotifySeverity:      defaultNotifySeverity,
		SMTPPort:            defaultSMTPPort,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.DatabasePath != "" {
		cfg.DatabasePath = yamlCfg.DatabasePath
	}
	if yamlCfg.Portal.BaseURL != "" {
		cfg.PortalBaseURL = yamlCfg.Portal.BaseURL
	}
	if yamlCfg.Portal.Username != "" {
		cfg.PortalUsername = yamlCfg.Portal.Username
	}

	if yamlCfg.ScrapeInterval != "" {
		if d, err := time.ParseDuration(yamlCfg.ScrapeInterval); err == nil {
			cfg.ScrapeInterval = d
		}
	}
	if yamlCfg.ScrapeRate.RPS > 0 {
		cfg.ScrapeRateRPS = yamlCfg.ScrapeRate.RPS
	}
	if yamlCfg.ScrapeRate.Burst > 0 {
		cfg.ScrapeBurst = yamlCfg.ScrapeRate.Burst
	}

	if yamlCfg.NotifySeverity != nil {
		cfg.NotifySeverity = *yamlCfg.NotifySeverity
	}

	if yamlCfg.SMTP.Host != "" {
		cfg.SMTPHost = yamlCfg.SMTP.Host
	}
	if yamlCfg.SMTP.Port > 0 {
		cfg.SMTPPort = yamlCfg.SMTP.Port
	}
	if yamlCfg.SMTP.From != "" {
		cfg.SMTPFrom = yamlCfg.SMTP.From
	}
	if len(yamlCfg.SMTP.Recipients) > 0 {
		cfg.SMTPRecipients = yamlCfg.SMTP.Recipients
	}

	if yamlCfg.ShutdownGrace != "" {
		if d, err := time.ParseDuration(yamlCfg.ShutdownGrace); err == nil {
			cfg.ShutdownGracePeriod = d
		}
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if path := strings.TrimSpace(os.Getenv("FOSSAWORK_DB")); path != "" {
		cfg.DatabasePath = path
	}
	if url := strings.TrimSpace(os.Getenv("WORKFOSSA_URL")); url != "" {
		cfg.PortalBaseURL = url
	}
	if user := strings.TrimSpace(os.Getenv("WORKFOSSA_USERNAME")); user != "" {
		cfg.PortalUsername = user
	}
	if pass := os.Getenv("WORKFOSSA_PASSWORD"); pass != "" {
		cfg.PortalPassword = pass
	}

	if raw := strings.TrimSpace(os.Getenv("SCRAPE_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.ScrapeInterval = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("NOTIFY_SEVERITY")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.NotifySeverity = value
		}
	}

	if host := strings.TrimSpace(os.Getenv("SMTP_HOST")); host != "" {
		cfg.SMTPHost = host
	}
	if raw := strings.TrimSpace(os.Getenv("SMTP_PORT")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SMTPPort = value
		}
	}
	if from := strings.TrimSpace(os.Getenv("SMTP_FROM")); from != "" {
		cfg.SMTPFrom = from
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		cfg.SMTPPassword = pass
	}
	if raw := strings.TrimSpace(os.Getenv("SMTP_RECIPIENTS")); raw != "" {
		cfg.SMTPRecipients = splitRecipients(raw)
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.DatabasePath != nil && *overrides.DatabasePath != "" {
		cfg.DatabasePath = *overrides.DatabasePath
	}
	if overrides.PortalBaseURL != nil && *overrides.PortalBaseURL != "" {
		cfg.PortalBaseURL = *overrides.PortalBaseURL
	}
	if overrides.ScrapeInterval != nil && *overrides.ScrapeInterval > 0 {
		cfg.ScrapeInterval = *overrides.ScrapeInterval
	}
	if overrides.NotifySeverity != nil && *overrides.NotifySeverity >= 0 {
		cfg.NotifySeverity = *overrides.NotifySeverity
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if cfg.PortalBaseURL == "" {
		return fmt.Errorf("portal base URL cannot be empty")
	}
	if cfg.ScrapeInterval <= 0 {
		return fmt.Errorf("scrape interval must be positive")
	}
	if cfg.ScrapeRateRPS <= 0 {
		return fmt.Errorf("scrape rate must be positive")
	}
	if cfg.ScrapeBurst <= 0 {
		return fmt.Errorf("scrape burst must be positive")
	}
	if cfg.SMTPHost != "" {
		if cfg.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required when SMTP is configured")
		}
		if len(cfg.SMTPRecipients) == 0 {
			return fmt.Errorf("SMTP_RECIPIENTS is required when SMTP is configured")
		}
	}
	return nil
}

// splitRecipients parses a comma-separated recipient list, dropping empty
// entries.
func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		recipients = append(recipients, part)
	}
	return recipients
}
