package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads <name>.env from ./configs or the working directory, then
// applies environment overrides and validates the result.
func Load(name string) (*Config, error) {
	return load(fmt.Sprintf("%s.env", name), "env")
}

func load(configName, configType string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	if configType != "" {
		v.SetConfigType(configType)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "WARNING: error reading config file (%s): %v\n", v.ConfigFileUsed(), err)
		}
	}

	v.AutomaticEnv()

	config := &Config{
		Application: ApplicationConfig{
			Name: v.GetString("APP_NAME"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Path:        v.GetString("DATABASE_PATH"),
			BusyTimeout: v.GetDuration("DATABASE_BUSY_TIMEOUT"),
		},
		Backup: BackupConfig{
			Dir:      v.GetString("BACKUP_DIR"),
			Interval: v.GetDuration("BACKUP_INTERVAL"),
			Keep:     v.GetInt("BACKUP_KEEP"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	r := raw{
		vatRate:      v.GetString("LEDGER_VAT_RATE"),
		recognition:  v.GetString("LEDGER_RECOGNITION_METHOD"),
		electricRate: v.GetString("UTILITY_ELECTRIC_RATE"),
		waterRate:    v.GetString("UTILITY_WATER_RATE"),
	}
	if err := config.validate(r); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "hotel-ledger")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("DATABASE_PATH", "./data/hotel.db")
	v.SetDefault("DATABASE_BUSY_TIMEOUT", 5*time.Second)
	v.SetDefault("BACKUP_DIR", "./backups")
	v.SetDefault("BACKUP_INTERVAL", 24*time.Hour)
	v.SetDefault("BACKUP_KEEP", 5)

	// Thai VAT; revenue recognized in full at checkout.
	v.SetDefault("LEDGER_VAT_RATE", "0.07")
	v.SetDefault("LEDGER_RECOGNITION_METHOD", "checkout")

	// Per kWh and per cubic meter.
	v.SetDefault("UTILITY_ELECTRIC_RATE", "8.0")
	v.SetDefault("UTILITY_WATER_RATE", "20.0")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
