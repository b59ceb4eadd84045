package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Service  ServiceConfig
	Formance FormanceConfig
	Server   ServerConfig
	Watcher  WatcherConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ServiceConfig holds referral service settings
type ServiceConfig struct {
	StoreTimeout time.Duration
	SeedDemoData bool
	SeedFile     string
	LedgerMirror string // "" or "formance"
}

// FormanceConfig holds the Formance Stack connection used by the ledger mirror
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WatcherConfig holds live update watcher settings
type WatcherConfig struct {
	PollingInterval time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Development bool
}
