package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadFiles_Defaults(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ModePlaceholder, cfg.Redaction.Mode)
	assert.Equal(t, 10*time.Millisecond, cfg.Redaction.ProbeBudget)
	assert.Equal(t, 30*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, "/bin/sh", cfg.Executor.Shell)
	assert.Equal(t, DefaultBlocklist, cfg.Executor.Blocklist)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Verify.EncodedVariants)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestLoadFiles_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
secrets:
  files:
    - ~/.secrets/base.env
    - .env.local
redaction:
  mode: partial
  custom_patterns:
    - 'acme_[a-z0-9]{12}'
executor:
  default_timeout: 5s
  blocklist:
    - curl
rate_limit:
  max_requests: 2
  window: 10s
`, 0o600)

	cfg, err := LoadFiles(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"~/.secrets/base.env", ".env.local"}, cfg.Secrets.Files)
	assert.Equal(t, ModePartial, cfg.Redaction.Mode)
	assert.Equal(t, []string{"acme_[a-z0-9]{12}"}, cfg.Redaction.CustomPatterns)
	assert.Equal(t, 5*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, []string{"curl"}, cfg.Executor.Blocklist)
	assert.Equal(t, 2, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	// untouched sections keep defaults
	assert.Equal(t, 10*time.Minute, cfg.Executor.MaxTimeout)
}

func TestLoadFiles_LocalOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.yaml", "redaction:\n  mode: asterisk\nrate_limit:\n  max_requests: 7\n", 0o600)
	local := writeConfig(t, dir, "local.yaml", "redaction:\n  mode: partial\n", 0o644)

	cfg, err := LoadFiles(global, local)
	require.NoError(t, err)

	assert.Equal(t, ModePartial, cfg.Redaction.Mode)
	assert.Equal(t, 7, cfg.RateLimit.MaxRequests)
}

func TestLoadFiles_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "rate_limit:\n  max_requests: 3\n", 0o600)

	t.Setenv("SECRETSH_RATE_LIMIT__MAX_REQUESTS", "9")
	t.Setenv("SECRETSH_EXECUTOR__DEFAULT_TIMEOUT", "12s")
	t.Setenv("SECRETSH_SECRETS__FILES", "a.env, b.toml")
	t.Setenv("SECRETSH_REDACTION__MODE", "asterisk")

	cfg, err := LoadFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 12*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, []string{"a.env", "b.toml"}, cfg.Secrets.Files)
	assert.Equal(t, ModeAsterisk, cfg.Redaction.Mode)
}

func TestLoadFiles_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "redaction: [unclosed\n", 0o600)

	_, err := LoadFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadFiles_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown mode", "redaction:\n  mode: shred\n", "redaction.mode"},
		{"max below default", "executor:\n  default_timeout: 1m\n  max_timeout: 10s\n", "executor.max_timeout"},
		{"rate limit zero", "rate_limit:\n  max_requests: 0\n", "rate_limit.max_requests"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
		{"empty blocklist entry", "executor:\n  blocklist: ['']\n", "executor.blocklist[0]"},
		{"telemetry protocol", "telemetry:\n  enabled: true\n  protocol: thrift\n", "telemetry.protocol"},
		{"telemetry insecure remote", "telemetry:\n  enabled: true\n  endpoint: otel.example.com:4317\n", "telemetry.insecure"},
		{"telemetry sample rate", "telemetry:\n  enabled: true\n  sample_rate: 1.5\n", "telemetry.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tt.content, 0o600)
			_, err := LoadFiles(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFiles_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}

	path := writeConfig(t, t.TempDir(), "config.yaml", "redaction:\n  mode: partial\n", 0o666)

	_, err := LoadFiles(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsecureConfigFile)
}

func TestLoadFiles_FileTooLarge(t *testing.T) {
	content := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, t.TempDir(), "config.yaml", content, 0o600)

	_, err := LoadFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o700))

	_, err := LoadFiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestDefaultGlobalPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DefaultGlobalPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "secretsh", "config.yaml"), path)
}

func TestEnsureConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "secretsh"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(text))
	assert.Equal(t, 250*time.Millisecond, d.Duration(), "failed parses leave the value untouched")
}

func TestDuration_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Tick Duration `json:"tick"`
	}{Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":"1m30s"}`, string(raw))

	var out struct {
		Tick Duration `json:"tick"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tick":"2s"}`), &out))
	assert.Equal(t, 2*time.Second, out.Tick.Duration())

	err = json.Unmarshal([]byte(`{"tick":"-2s"}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4318", true},
		{"127.0.0.53", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"https://collector.internal", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalEndpoint(tt.endpoint))
		})
	}
}

func TestValidate_TelemetryDisabledSkipsChecks(t *testing.T) {
	cfg := Default()
	applyDefaults(cfg)
	cfg.Telemetry.Endpoint = ""
	cfg.Telemetry.Protocol = "bogus"
	assert.NoError(t, cfg.Validate())
}
