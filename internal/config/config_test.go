package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
inference:
  baseURL: http://predict:5000
  timeout: 5s
database:
  driver: mysql
  host: db
  user: app
  password: secret
  name: skin
`)
	t.Setenv("PREDICT_BASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://predict:5000", cfg.Inference.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, ProviderPredict, cfg.Inference.Provider)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [port"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PREDICT_BASE_URL": "http://override:1",
		"DB_DRIVER":        "postgres",
		"OPENAI_API_KEY":   "sk-test",
		"PORT":             "7000",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "http://override:1", cfg.Inference.BaseURL)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "sk-test", cfg.Inference.OpenAI.APIKey)
	assert.Equal(t, 7000, cfg.Server.Port)

	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "PORT" {
			return "http", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	tests := map[string]func(c *Config){
		"unknown driver":     func(c *Config) { c.Database.Driver = "sqlite" },
		"mysql without host": func(c *Config) { c.Database.Driver = DriverMySQL },
		"unknown provider":   func(c *Config) { c.Inference.Provider = "local" },
		"openai without key": func(c *Config) { c.Inference.Provider = ProviderOpenAI },
		"zero timeout":       func(c *Config) { c.Inference.Timeout = 0 },
		"bad base url":       func(c *Config) { c.Inference.BaseURL = "not a url" },
		"port range":         func(c *Config) { c.Server.Port = 70000 },
		"minio bucket":       func(c *Config) { c.Minio.Enabled = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Host = "db.local"
	cfg.Database.User = "app"
	cfg.Database.Password = "p@ss:word"
	cfg.Database.Name = "skin"

	parsed, err := mysql.ParseDSN(cfg.MySQLDSN())
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db.local:3306", parsed.Addr)
	assert.Equal(t, "skin", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Host = "pg"
	cfg.Database.Port = 6543
	cfg.Database.User = "app"
	cfg.Database.Password = "secret"
	cfg.Database.Name = "skin"
	cfg.Database.SSLMode = "require"

	assert.Equal(t, "postgres://app:secret@pg:6543/skin?sslmode=require", cfg.PostgresDSN())
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "secret"
	cfg.Inference.OpenAI.APIKey = "sk-live"

	r := cfg.Redacted()
	assert.NotContains(t, r.Database.Password, "secret")
	assert.NotContains(t, r.Inference.OpenAI.APIKey, "sk-live")
	assert.Empty(t, r.Minio.SecretKey)
	assert.Equal(t, "secret", cfg.Database.Password, "original untouched")
}
