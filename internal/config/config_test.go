package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadServerConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *LedgerServerConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
server:
  host: 127.0.0.1
  port: 9000
  shutdown_timeout: 5s
storage:
  backend: postgres
database:
  host: db
  port: 5433
  user: ledger
  password: secret
  dbname: ledger
  max_conns: 16
clickhouse:
  dsn: "clickhouse://localhost:9000/ledger"
nats:
  url: "nats://localhost:4222"
  subject_prefix: "tokens"
worker:
  pool_size: 4
ledger:
  rebuild_on_start: false
`,
			validate: func(t *testing.T, cfg *LedgerServerConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
				assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
				assert.Equal(t, "db", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, int32(16), cfg.Database.MaxConns)
				assert.Equal(t, "clickhouse://localhost:9000/ledger", cfg.ClickHouse.DSN)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "tokens", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 4, cfg.Worker.PoolSize)
				assert.False(t, cfg.Ledger.RebuildOnStart)
			},
		},
		{
			name:       "defaults",
			configFile: "debug: false\n",
			validate: func(t *testing.T, cfg *LedgerServerConfig) {
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
				assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, BackendMemory, cfg.Storage.Backend)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "ledger", cfg.NATS.SubjectPrefix)
				assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
				assert.Empty(t, cfg.NATS.URL)
				assert.Equal(t, 8, cfg.Worker.PoolSize)
				assert.True(t, cfg.Ledger.RebuildOnStart)
				assert.Equal(t, 4096, cfg.Ledger.DeriveCacheSize)
				assert.Equal(t, 5*time.Second, cfg.Ledger.JournalRetry)
			},
		},
		{
			name:        "unknown backend",
			configFile:  "storage:\n  backend: sqlite\n",
			expectError: true,
		},
		{
			name:        "invalid port",
			configFile:  "server:\n  port: invalid\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadServerConfig(writeConfig(t, tt.configFile), t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadDemoConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadDemoConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"), t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
		assert.Equal(t, 5, cfg.Client.MaxRetries)
		assert.Equal(t, 2, cfg.Decimals)
		assert.Equal(t, uint64(1000), cfg.MintAmount)
	})

	t.Run("bare PRIVATE_KEY", func(t *testing.T) {
		t.Setenv("PRIVATE_KEY", "[1,2,3]")
		cfg, err := LoadDemoConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"), t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "[1,2,3]", cfg.PrivateKey)
	})

	t.Run("prefixed key wins", func(t *testing.T) {
		t.Setenv("PRIVATE_KEY", "[1,2,3]")
		t.Setenv("TOKEN_LEDGER_PRIVATE_KEY", "[4,5,6]")
		cfg, err := LoadDemoConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"), t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "[4,5,6]", cfg.PrivateKey)
	})
}

func TestLoadReplayConfig(t *testing.T) {
	path := writeConfig(t, `
batch_size: 50
database:
  host: replica
  password: pw
`)
	cfg, err := LoadReplayConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "host=replica port=5432 user=postgres password=pw dbname=token_ledger sslmode=disable", cfg.Database.DSN())
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	// registered so the values godotenv writes are restored after the test
	for _, key := range []string{
		"TOKEN_LEDGER_DEBUG",
		"TOKEN_LEDGER_SERVER_PORT",
		"TOKEN_LEDGER_STORAGE_BACKEND",
		"TOKEN_LEDGER_DATABASE_HOST",
		"TOKEN_LEDGER_NATS_URL",
	} {
		t.Setenv(key, "")
	}

	envDir := t.TempDir()
	envContent := `TOKEN_LEDGER_DEBUG=true
TOKEN_LEDGER_SERVER_PORT=9191
TOKEN_LEDGER_STORAGE_BACKEND=postgres
TOKEN_LEDGER_DATABASE_HOST=env-host
`
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(envContent), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env.local"), []byte("TOKEN_LEDGER_NATS_URL=nats://local:4222\n"), 0600))

	path := writeConfig(t, `
debug: false
server:
  port: 8081
database:
  host: file-host
`)

	cfg, err := LoadServerConfig(path, envDir)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "nats://local:4222", cfg.NATS.URL)
}
