// Package config loads service configuration from YAML, .env files and
// TOKEN_LEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by the loaders.
const EnvPrefix = "TOKEN_LEDGER"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL journal configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ClickHouseConfig holds supply analytics configuration. An empty DSN
// disables the ClickHouse projection.
type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig selects the journal backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory | postgres
}

// NATSConfig holds NATS JetStream configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// WorkerConfig sizes the post-commit side-effect pool.
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// LedgerConfig holds ledger behavior settings.
type LedgerConfig struct {
	RebuildOnStart  bool          `mapstructure:"rebuild_on_start"`
	DeriveCacheSize int           `mapstructure:"derive_cache_size"`
	JournalRetry    time.Duration `mapstructure:"journal_retry"` // max elapsed time for journal write retries
}

// ClientConfig holds settings for the HTTP client used by the demo.
type ClientConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LedgerServerConfig holds configuration for cmd/server
type LedgerServerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
}

// DemoConfig holds configuration for cmd/demo
type DemoConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Client      ClientConfig `mapstructure:"client"`
	PrivateKey  string       `mapstructure:"private_key"`  // JSON byte array, as in Solana's PRIVATE_KEY
	KeypairPath string       `mapstructure:"keypair_path"` // Solana CLI keygen file
	Decimals    int          `mapstructure:"decimals"`
	MintAmount  uint64       `mapstructure:"mint_amount"`
}

// ReplayConfig holds configuration for cmd/replay
type ReplayConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	BatchSize  int            `mapstructure:"batch_size"`
}

// LoadServerConfig loads configuration for the ledger server
func LoadServerConfig(configFile string, envPath string) (*LedgerServerConfig, error) {
	v := configureViper("server", configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("storage.backend", BackendMemory)
	setDatabaseDefaults(v)
	v.SetDefault("nats.stream_name", "TOKEN_LEDGER")
	v.SetDefault("nats.subject_prefix", "ledger")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "token-ledger")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_size", 1024)
	v.SetDefault("ledger.rebuild_on_start", true)
	v.SetDefault("ledger.derive_cache_size", 4096)
	v.SetDefault("ledger.journal_retry", "5s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config LedgerServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch config.Storage.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	return &config, nil
}

// LoadDemoConfig loads configuration for the demo client
func LoadDemoConfig(configFile string, envPath string) (*DemoConfig, error) {
	v := configureViper("demo", configFile, envPath)

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "10s")
	v.SetDefault("client.max_retries", 5)
	v.SetDefault("decimals", 2)
	v.SetDefault("mint_amount", 1000)

	// a bare PRIVATE_KEY is accepted as well
	_ = v.BindEnv("private_key", EnvPrefix+"_PRIVATE_KEY", "PRIVATE_KEY")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config DemoConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadReplayConfig loads configuration for the replay tool
func LoadReplayConfig(configFile string, envPath string) (*ReplayConfig, error) {
	v := configureViper("replay", configFile, envPath)

	setDatabaseDefaults(v)
	v.SetDefault("batch_size", 500)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config ReplayConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "token_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", "5s")
}

// readConfig reads the config file. A missing file is not an error; the
// environment and defaults still apply.
func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars binds every known key so that Unmarshal sees environment
// values even when no config file sets the key.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.shutdown_timeout",
		// Storage
		"storage.backend",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_conns",
		"database.connect_timeout",
		"clickhouse.dsn",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Ledger
		"ledger.rebuild_on_start",
		"ledger.derive_cache_size",
		"ledger.journal_retry",
		// Demo
		"client.base_url",
		"client.timeout",
		"client.max_retries",
		"keypair_path",
		"decimals",
		"mint_amount",
		// Replay
		"batch_size",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // later files override earlier ones
	}
}
