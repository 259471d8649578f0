package config

import (
	"fmt"
	"time"
)

// fileConfig is the TOML layout. Durations are strings like "10s".
type fileConfig struct {
	Server struct {
		Port               string `toml:"port"`
		RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	} `toml:"server"`

	Ledger struct {
		Backend  string `toml:"backend"`
		Timeout  string `toml:"timeout"`
		Timezone string `toml:"timezone"`
	} `toml:"ledger"`

	SQLite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`

	XLSX struct {
		Path  string `toml:"path"`
		Sheet string `toml:"sheet"`
	} `toml:"xlsx"`

	Google struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
	} `toml:"google"`

	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`

	Numbering struct {
		Mode         string `toml:"mode"`
		Lock         string `toml:"lock"`
		LockDir      string `toml:"lock_dir"`
		RedisAddress string `toml:"redis_address"`
	} `toml:"numbering"`

	Report struct {
		TaxRate           string `toml:"tax_rate"`
		DefaultAccountRef string `toml:"default_account_ref"`
		PDFDir            string `toml:"pdf_dir"`
	} `toml:"report"`

	Company struct {
		Name      string `toml:"name"`
		Owner     string `toml:"owner"`
		Address   string `toml:"address"`
		Phone     string `toml:"phone"`
		Bank      string `toml:"bank"`
		IBAN      string `toml:"iban"`
		TaxNumber string `toml:"tax_number"`
		VATID     string `toml:"vat_id"`
	} `toml:"company"`

	OpenAI struct {
		Model string `toml:"model"`
	} `toml:"openai"`

	Worker struct {
		BatchSize int    `toml:"batch_size"`
		Interval  string `toml:"interval"`
	} `toml:"worker"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// apply copies every set field onto cfg. Secrets are environment only.
func (f *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Port, f.Server.Port)
	setInt(&cfg.RateLimitPerMinute, f.Server.RateLimitPerMinute)

	setString(&cfg.DataBackend, f.Ledger.Backend)
	setString(&cfg.Timezone, f.Ledger.Timezone)
	if err := setDuration(&cfg.LedgerTimeout, f.Ledger.Timeout); err != nil {
		return fmt.Errorf("ledger.timeout: %w", err)
	}

	setString(&cfg.SQLiteDBPath, f.SQLite.Path)
	setString(&cfg.XLSXPath, f.XLSX.Path)
	setString(&cfg.XLSXSheet, f.XLSX.Sheet)

	setString(&cfg.GoogleSpreadsheetID, f.Google.SpreadsheetID)
	setString(&cfg.GoogleSheetName, f.Google.SheetName)
	setString(&cfg.GoogleServiceAccountFile, f.Google.ServiceAccountFile)

	setString(&cfg.AMQPURL, f.AMQP.URL)
	setString(&cfg.AMQPExchange, f.AMQP.Exchange)
	setString(&cfg.AMQPQueue, f.AMQP.Queue)

	setString(&cfg.NumberingMode, f.Numbering.Mode)
	setString(&cfg.NumberLock, f.Numbering.Lock)
	setString(&cfg.NumberLockDir, f.Numbering.LockDir)
	setString(&cfg.RedisAddress, f.Numbering.RedisAddress)

	setString(&cfg.TaxRate, f.Report.TaxRate)
	setString(&cfg.DefaultAccountRef, f.Report.DefaultAccountRef)
	setString(&cfg.PDFDirectory, f.Report.PDFDir)

	setString(&cfg.CompanyName, f.Company.Name)
	setString(&cfg.CompanyOwner, f.Company.Owner)
	setString(&cfg.CompanyAddress, f.Company.Address)
	setString(&cfg.CompanyPhone, f.Company.Phone)
	setString(&cfg.CompanyBank, f.Company.Bank)
	setString(&cfg.CompanyIBAN, f.Company.IBAN)
	setString(&cfg.CompanyTaxNumber, f.Company.TaxNumber)
	setString(&cfg.CompanyVATID, f.Company.VATID)
	setString(&cfg.OpenAIModel, f.OpenAI.Model)

	setInt(&cfg.SyncBatchSize, f.Worker.BatchSize)
	if err := setDuration(&cfg.SyncInterval, f.Worker.Interval); err != nil {
		return fmt.Errorf("worker.interval: %w", err)
	}
	setString(&cfg.LogLevel, f.Log.Level)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
