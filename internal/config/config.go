package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Backends and lock strategies accepted by Validate.
var (
	ValidBackends = []string{"memory", "sheets", "sqlite", "xlsx"}
	ValidLocks    = []string{"none", "file", "redis"}
	ValidModes    = []string{"period", "legacy"}
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Local workbook
	XLSXPath  string
	XLSXSheet string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Numbering
	NumberingMode string
	NumberLock    string
	NumberLockDir string
	RedisAddress  string

	// Ledger access
	LedgerTimeout time.Duration
	Timezone      string

	// Reports
	TaxRate           string
	DefaultAccountRef string
	// PDFDirectory receives the worker's rendered reports; empty disables it.
	PDFDirectory string

	// Letterhead printed on rendered reports
	CompanyName      string
	CompanyOwner     string
	CompanyAddress   string
	CompanyPhone     string
	CompanyBank      string
	CompanyIBAN      string
	CompanyTaxNumber string
	CompanyVATID     string

	// Extraction
	OpenAIAPIKey string
	OpenAIModel  string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 30,
		DataBackend:        "memory",
		SQLiteDBPath:       "./data/rapport.db",
		XLSXPath:           "./data/ledger.xlsx",
		XLSXSheet:          "Ledger",
		AMQPExchange:       "rapport",
		AMQPQueue:          "ledger_sync",
		GoogleSheetName:    "Ledger",
		NumberingMode:      "period",
		NumberLock:         "none",
		NumberLockDir:      "./data/locks",
		RedisAddress:       "localhost:6379",
		LedgerTimeout:      10 * time.Second,
		Timezone:           "Europe/Berlin",
		TaxRate:            "0.19",
		OpenAIModel:        "gpt-4o-mini",
		SyncBatchSize:      10,
		SyncInterval:       30 * time.Second,
		LogLevel:           "info",
	}
}

// Load reads the configuration from the environment over the defaults.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile applies a TOML file between the defaults and the environment.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var f fileConfig
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := f.apply(cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.XLSXPath = getEnv("XLSX_PATH", c.XLSXPath)
	c.XLSXSheet = getEnv("XLSX_SHEET", c.XLSXSheet)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)

	c.NumberingMode = getEnv("NUMBERING_MODE", c.NumberingMode)
	c.NumberLock = getEnv("NUMBER_LOCK", c.NumberLock)
	c.NumberLockDir = getEnv("NUMBER_LOCK_DIR", c.NumberLockDir)
	c.RedisAddress = getEnv("REDIS_ADDRESS", c.RedisAddress)

	c.LedgerTimeout = getEnvDuration("LEDGER_TIMEOUT", c.LedgerTimeout)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.TaxRate = getEnv("TAX_RATE", c.TaxRate)
	c.DefaultAccountRef = getEnv("DEFAULT_ACCOUNT_REF", c.DefaultAccountRef)
	c.PDFDirectory = getEnv("PDF_DIR", c.PDFDirectory)

	c.CompanyName = getEnv("COMPANY_NAME", c.CompanyName)
	c.CompanyOwner = getEnv("COMPANY_OWNER", c.CompanyOwner)
	c.CompanyAddress = getEnv("COMPANY_ADDRESS", c.CompanyAddress)
	c.CompanyPhone = getEnv("COMPANY_PHONE", c.CompanyPhone)
	c.CompanyBank = getEnv("COMPANY_BANK", c.CompanyBank)
	c.CompanyIBAN = getEnv("COMPANY_IBAN", c.CompanyIBAN)
	c.CompanyTaxNumber = getEnv("COMPANY_TAX_NUMBER", c.CompanyTaxNumber)
	c.CompanyVATID = getEnv("COMPANY_VAT_ID", c.CompanyVATID)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)

	c.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", c.SyncBatchSize)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Rate returns TaxRate as a decimal. Validate reports a bad value.
func (c *Config) Rate() decimal.Decimal {
	r, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.RequireFromString("0.19")
	}
	return r
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(ValidBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, ValidBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	case "xlsx":
		if c.XLSXPath == "" {
			errors = append(errors, "XLSX path cannot be empty when using xlsx backend")
		} else if err := ensureDir(c.XLSXPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create XLSX directory: %v", err))
		}
	case "sheets":
		errors = append(errors, c.validateSheets()...)
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(ValidModes, strings.ToLower(c.NumberingMode)) {
		errors = append(errors, fmt.Sprintf("invalid numbering mode '%s': must be one of %v", c.NumberingMode, ValidModes))
	}
	if !slices.Contains(ValidLocks, c.NumberLock) {
		errors = append(errors, fmt.Sprintf("invalid number lock '%s': must be one of %v", c.NumberLock, ValidLocks))
	}
	if c.NumberLock == "file" && c.NumberLockDir == "" {
		errors = append(errors, "number lock directory cannot be empty when using file lock")
	}
	if c.NumberLock == "redis" && c.RedisAddress == "" {
		errors = append(errors, "Redis address cannot be empty when using redis lock")
	}

	if c.LedgerTimeout < 100*time.Millisecond || c.LedgerTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid ledger timeout %v: must be between 100ms and 5m", c.LedgerTimeout))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if r, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid tax rate '%s': must be a decimal", c.TaxRate))
	} else if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid tax rate %s: must be in [0, 1)", r))
	}

	if c.PDFDirectory != "" && c.AMQPURL == "" {
		errors = append(errors, "PDF directory requires an AMQP URL to receive finalized reports")
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets backend")
	}

	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
