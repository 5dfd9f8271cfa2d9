package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL        MySQLConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	Migrate      bool
	HTTPAddr     string
	Technitium   TechnitiumConfig
	PTRSync      PTRSyncConfig
	QueryLog     QueryLogConfig
	NodeHealth   NodeHealthConfig
	ACME         ACMEConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// TechnitiumConfig holds defaults for talking to Technitium nodes
type TechnitiumConfig struct {
	TimeoutSec    int
	SkipTLSVerify bool
}

// PTRSyncConfig holds defaults for the PTR reconciliation engine
type PTRSyncConfig struct {
	IPv4PrefixLength   int
	IPv6PrefixLength   int
	SourceZoneCacheSec int
	ScanWorkers        int
	SnapshotDir        string
}

// QueryLogConfig holds query log view configuration
type QueryLogConfig struct {
	CacheSec int
	PageSize int
}

// NodeHealthConfig holds node health worker configuration
type NodeHealthConfig struct {
	Enabled              bool
	IntervalSec          int
	TimeoutSec           int
	Concurrency          int
	OfflineFailThreshold int
}

// ACMEConfig holds ACME certificate configuration
type ACMEConfig struct {
	DirectoryURL string
	Email        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "technitium-companion"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8070"),
		Technitium: TechnitiumConfig{
			TimeoutSec:    getEnvInt("TECHNITIUM_TIMEOUT_SEC", 15),
			SkipTLSVerify: getEnv("TECHNITIUM_SKIP_TLS_VERIFY", "0") == "1",
		},
		PTRSync: PTRSyncConfig{
			IPv4PrefixLength:   getEnvInt("PTR_IPV4_PREFIX_LENGTH", 24),
			IPv6PrefixLength:   getEnvInt("PTR_IPV6_PREFIX_LENGTH", 64),
			SourceZoneCacheSec: getEnvInt("PTR_SOURCE_ZONE_CACHE_SEC", 30),
			ScanWorkers:        getEnvInt("PTR_SCAN_WORKERS", 4),
			SnapshotDir:        getEnv("PTR_SNAPSHOT_DIR", "snapshots"),
		},
		QueryLog: QueryLogConfig{
			CacheSec: getEnvInt("QUERYLOG_CACHE_SEC", 15),
			PageSize: getEnvInt("QUERYLOG_PAGE_SIZE", 50),
		},
		NodeHealth: NodeHealthConfig{
			Enabled:              getEnv("NODE_HEALTH_WORKER_ENABLED", "1") == "1",
			IntervalSec:          getEnvInt("NODE_HEALTH_WORKER_INTERVAL_SEC", 30),
			TimeoutSec:           getEnvInt("NODE_HEALTH_WORKER_TIMEOUT_SEC", 5),
			Concurrency:          getEnvInt("NODE_HEALTH_WORKER_CONCURRENCY", 10),
			OfflineFailThreshold: getEnvInt("NODE_HEALTH_WORKER_OFFLINE_THRESHOLD", 2),
		},
		ACME: ACMEConfig{
			DirectoryURL: getEnv("ACME_DIRECTORY_URL", "https://acme-v02.api.letsencrypt.org/directory"),
			Email:        getEnv("ACME_EMAIL", ""),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PTRSync.ScanWorkers < 1 {
		cfg.PTRSync.ScanWorkers = 4
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 1440),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "technitium-companion"),
		},
		Log: LogConfig{
			Level:  getValue("LOG_LEVEL", "log", "level", "info"),
			Format: getValue("LOG_FORMAT", "log", "format", "text"),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8070"),
		Technitium: TechnitiumConfig{
			TimeoutSec:    getValueInt("TECHNITIUM_TIMEOUT_SEC", "technitium", "timeout_sec", 15),
			SkipTLSVerify: getValueBool("TECHNITIUM_SKIP_TLS_VERIFY", "technitium", "skip_tls_verify", false),
		},
		PTRSync: PTRSyncConfig{
			IPv4PrefixLength:   getValueInt("PTR_IPV4_PREFIX_LENGTH", "ptrsync", "ipv4_prefix_length", 24),
			IPv6PrefixLength:   getValueInt("PTR_IPV6_PREFIX_LENGTH", "ptrsync", "ipv6_prefix_length", 64),
			SourceZoneCacheSec: getValueInt("PTR_SOURCE_ZONE_CACHE_SEC", "ptrsync", "source_zone_cache_sec", 30),
			ScanWorkers:        getValueInt("PTR_SCAN_WORKERS", "ptrsync", "scan_workers", 4),
			SnapshotDir:        getValue("PTR_SNAPSHOT_DIR", "ptrsync", "snapshot_dir", "snapshots"),
		},
		QueryLog: QueryLogConfig{
			CacheSec: getValueInt("QUERYLOG_CACHE_SEC", "querylog", "cache_sec", 15),
			PageSize: getValueInt("QUERYLOG_PAGE_SIZE", "querylog", "page_size", 50),
		},
		NodeHealth: NodeHealthConfig{
			Enabled:              getValueBool("NODE_HEALTH_WORKER_ENABLED", "node_health", "enabled", true),
			IntervalSec:          getValueInt("NODE_HEALTH_WORKER_INTERVAL_SEC", "node_health", "interval_sec", 30),
			TimeoutSec:           getValueInt("NODE_HEALTH_WORKER_TIMEOUT_SEC", "node_health", "timeout_sec", 5),
			Concurrency:          getValueInt("NODE_HEALTH_WORKER_CONCURRENCY", "node_health", "concurrency", 10),
			OfflineFailThreshold: getValueInt("NODE_HEALTH_WORKER_OFFLINE_THRESHOLD", "node_health", "offline_fail_threshold", 2),
		},
		ACME: ACMEConfig{
			DirectoryURL: getValue("ACME_DIRECTORY_URL", "acme", "directory_url", "https://acme-v02.api.letsencrypt.org/directory"),
			Email:        getValue("ACME_EMAIL", "acme", "email", ""),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PTRSync.ScanWorkers < 1 {
		cfg.PTRSync.ScanWorkers = 4
	}

	return cfg, nil
}
