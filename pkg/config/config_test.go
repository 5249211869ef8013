package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(Sources{Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	yamlPath := writeFile(t, "restodb.yaml", `
uri: mongodb://yaml-host:27017
database: from_yaml
timeout: 3s
workers: 2
log:
  level: debug
`)
	envPath := writeFile(t, ".env", "MONGODB_URI=mongodb://dotenv-host:27017\nDB_NAME=from_dotenv\nRESTODB_RETRIES=7\n")

	t.Run("yaml then dotenv", func(t *testing.T) {
		cfg, err := Load(Sources{ConfigFile: yamlPath, EnvFile: envPath, Getenv: noEnv})
		require.NoError(t, err)
		assert.Equal(t, "mongodb://dotenv-host:27017", cfg.URI)
		assert.Equal(t, "from_dotenv", cfg.Database)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, 2, cfg.Workers)
		assert.Equal(t, 7, cfg.Retries)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("environment beats dotenv", func(t *testing.T) {
		cfg, err := Load(Sources{ConfigFile: yamlPath, EnvFile: envPath, Getenv: envMap(map[string]string{
			"MONGODB_URI":        "mem://",
			"RESTODB_STRICT_API": "true",
			"RESTODB_TIMEOUT":    "250ms",
		})})
		require.NoError(t, err)
		assert.Equal(t, "mem://", cfg.URI)
		assert.True(t, cfg.StrictAPI)
		assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
		assert.Equal(t, "from_dotenv", cfg.Database)
	})

	t.Run("flags beat everything", func(t *testing.T) {
		fs := pflag.NewFlagSet("restodb", pflag.ContinueOnError)
		flags := NewFlags(fs)
		require.NoError(t, fs.Parse([]string{
			"--config", yamlPath, "--env-file", envPath,
			"--database", "from_flag", "--workers=8", "-o", "json",
		}))

		cfg, err := flags.Resolve(envMap(map[string]string{"DB_NAME": "from_env"}))
		require.NoError(t, err)
		assert.Equal(t, "from_flag", cfg.Database)
		assert.Equal(t, 8, cfg.Workers)
		assert.Equal(t, "json", cfg.Output)
		// untouched flags keep lower sources
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, "mongodb://dotenv-host:27017", cfg.URI)
	})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  Sources
	}{
		{"explicit config missing", Sources{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: noEnv}},
		{"explicit env file missing", Sources{EnvFile: filepath.Join(t.TempDir(), "nope.env"), Getenv: noEnv}},
		{"unknown yaml field", Sources{ConfigFile: writeFile(t, "c.yaml", "colour: red\n"), Getenv: noEnv}},
		{"bad duration", Sources{Getenv: envMap(map[string]string{"RESTODB_TIMEOUT": "soon"})}},
		{"bad int", Sources{Getenv: envMap(map[string]string{"RESTODB_WORKERS": "many"})}},
	}
	t.Chdir(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(Sources{ConfigFile: writeFile(t, "empty.yaml", ""), Getenv: noEnv, EnvFile: writeFile(t, ".env", "")})
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, cfg.Database)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"scheme", func(c *Config) { c.URI = "postgres://localhost" }},
		{"database", func(c *Config) { c.Database = "bad.name" }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"retries", func(c *Config) { c.Retries = -1 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"ratio", func(c *Config) { c.IneffectiveRatio = 0 }},
		{"output", func(c *Config) { c.Output = "xml" }},
		{"log format", func(c *Config) { c.Log.Format = "logfmt" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("password is not echoed", func(t *testing.T) {
		cfg := Default()
		cfg.URI = "postgres://admin:hunter2@db"
		err := cfg.Validate()
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "hunter2")
	})
}

func TestCapabilities(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Capabilities().TextIndexes)

	cfg.StrictAPI = true
	assert.False(t, cfg.Capabilities().TextIndexes)
	assert.True(t, cfg.Capabilities().GeoIndexes)

	cfg.URI = "mem://"
	assert.True(t, cfg.Capabilities().TextIndexes)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	logger.Info("converge.start")
	logger.Warn("converge.index.failed", "collection", "ordenes")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "converge.index.failed", line["msg"])
	assert.Equal(t, "ordenes", line["collection"])
}
