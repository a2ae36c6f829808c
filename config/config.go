/*
Package config loads runtime settings for the hotel ledger services.

LAYERS (later wins):
  1. Defaults (setDefaults)
  2. Optional <name>.env file in ./configs or .
  3. Environment variables

Validation collects every problem before failing, so a misconfigured
deployment reports all of them at once.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/booking"
)

// Config is the root configuration.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Backup      BackupConfig
	Ledger      LedgerConfig
	Utility     UtilityConfig
	CORS        CORSConfig
}

type ApplicationConfig struct {
	Name string
}

type LoggingConfig struct {
	Level string
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// BackupConfig drives snapshots. Interval 0 disables the scheduler; Keep 0
// disables pruning.
type BackupConfig struct {
	Dir      string
	Interval time.Duration
	Keep     int
}

// LedgerConfig holds accounting policy.
type LedgerConfig struct {
	VATRate           decimal.Decimal
	RecognitionMethod booking.RecognitionMethod
}

// UtilityConfig holds the default per-unit meter rates.
type UtilityConfig struct {
	ElectricRate decimal.Decimal
	WaterRate    decimal.Decimal
}

type CORSConfig struct {
	AllowedOrigins []string
}

// raw carries string-typed values that need parsing before validation.
type raw struct {
	vatRate      string
	recognition  string
	electricRate string
	waterRate    string
}

func (c *Config) validate(r raw) error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if c.Database.Path == "" {
		validationErrors = append(validationErrors, "DATABASE_PATH is required")
	}
	if c.Database.Path == ":memory:" {
		validationErrors = append(validationErrors, "DATABASE_PATH must be a file path")
	}
	if c.Database.BusyTimeout <= 0 {
		validationErrors = append(validationErrors, "DATABASE_BUSY_TIMEOUT must be greater than 0")
	}
	if c.Backup.Dir == "" {
		validationErrors = append(validationErrors, "BACKUP_DIR is required")
	}
	if c.Backup.Interval < 0 {
		validationErrors = append(validationErrors, "BACKUP_INTERVAL must not be negative")
	}
	if c.Backup.Keep < 0 {
		validationErrors = append(validationErrors, "BACKUP_KEEP must not be negative")
	}

	var err error
	if c.Ledger.VATRate, err = decimal.NewFromString(r.vatRate); err != nil {
		validationErrors = append(validationErrors, "LEDGER_VAT_RATE must be a decimal number")
	} else if c.Ledger.VATRate.IsNegative() || c.Ledger.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		validationErrors = append(validationErrors, "LEDGER_VAT_RATE must be in [0, 1)")
	}

	if c.Ledger.RecognitionMethod, err = booking.ParseRecognitionMethod(r.recognition); err != nil {
		if errors.Is(err, booking.ErrRecognitionNotImplemented) {
			validationErrors = append(validationErrors, "LEDGER_RECOGNITION_METHOD 'daily' is not implemented; use 'checkout'")
		} else {
			validationErrors = append(validationErrors, "LEDGER_RECOGNITION_METHOD must be 'checkout'")
		}
	}

	if c.Utility.ElectricRate, err = decimal.NewFromString(r.electricRate); err != nil || c.Utility.ElectricRate.IsNegative() {
		validationErrors = append(validationErrors, "UTILITY_ELECTRIC_RATE must be a non-negative decimal")
	}
	if c.Utility.WaterRate, err = decimal.NewFromString(r.waterRate); err != nil || c.Utility.WaterRate.IsNegative() {
		validationErrors = append(validationErrors, "UTILITY_WATER_RATE must be a non-negative decimal")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		validationErrors = append(validationErrors, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(validationErrors, "; "))
	}
	return nil
}
