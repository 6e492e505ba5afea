package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment variables
// and, when CONFIG_FILE is set, a YAML file whose keys use the same names in lower case.
type Config struct {
	ServerPort  string
	DBDriver    string
	DBDSN       string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	SwaggerHost string

	CardEncryptionKey string
	LockTimeout       time.Duration
	LogLevel          string
	ResetDB           bool

	ExpiryReportSchedule   string
	ExpiryReportWindowDays int
}

var defaults = map[string]any{
	"server_port":               "8080",
	"db_driver":                 "mysql",
	"db_dsn":                    "user:password@tcp(localhost:3306)/bankcards?charset=utf8mb4&parseTime=True&loc=UTC",
	"redis_addr":                "localhost:6379",
	"redis_db":                  0,
	"redis_password":            "",
	"jwt_secret":                "change-me",
	"swagger_host":              "",
	"card_encryption_key":       "",
	"lock_timeout":              "5s",
	"log_level":                 "info",
	"reset_db":                  false,
	"expiry_report_schedule":    "0 6 * * *",
	"expiry_report_window_days": 30,
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:             v.GetString("server_port"),
		DBDriver:               strings.ToLower(v.GetString("db_driver")),
		DBDSN:                  v.GetString("db_dsn"),
		RedisAddr:              v.GetString("redis_addr"),
		RedisDB:                v.GetInt("redis_db"),
		RedisPass:              v.GetString("redis_password"),
		JWTSecret:              v.GetString("jwt_secret"),
		SwaggerHost:            v.GetString("swagger_host"),
		CardEncryptionKey:      v.GetString("card_encryption_key"),
		LockTimeout:            v.GetDuration("lock_timeout"),
		LogLevel:               v.GetString("log_level"),
		ResetDB:                v.GetBool("reset_db"),
		ExpiryReportSchedule:   v.GetString("expiry_report_schedule"),
		ExpiryReportWindowDays: v.GetInt("expiry_report_window_days"),
	}

	switch cfg.DBDriver {
	case "mysql", "postgres", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.LockTimeout < 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must not be negative, got %s", cfg.LockTimeout)
	}

	return cfg, nil
}
