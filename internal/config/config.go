// Package config provides configuration loading for secretsh.
//
// Configuration is layered: built-in defaults, then the global file
// (~/.config/secretsh/config.yaml), then the project file (.secretsh.yaml),
// then SECRETSH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Redaction modes accepted by redaction.mode.
const (
	ModePlaceholder = "placeholder"
	ModeAsterisk    = "asterisk"
	ModePartial     = "partial"
)

// Config holds the complete secretsh configuration.
type Config struct {
	Secrets   SecretsConfig   `koanf:"secrets"`
	Redaction RedactionConfig `koanf:"redaction"`
	Executor  ExecutorConfig  `koanf:"executor"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Verify    VerifyConfig    `koanf:"verify"`
	HTTP      HTTPConfig      `koanf:"http"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// SecretsConfig lists secret source files, applied in order.
type SecretsConfig struct {
	Files []string `koanf:"files"`
	Watch bool     `koanf:"watch"`
}

// RedactionConfig configures the scrubbing engine.
type RedactionConfig struct {
	Mode           string        `koanf:"mode"`
	CustomPatterns []string      `koanf:"custom_patterns"`
	ProbeBudget    time.Duration `koanf:"probe_budget"`
}

// ExecutorConfig configures command execution.
type ExecutorConfig struct {
	Shell          string        `koanf:"shell"`
	DefaultTimeout time.Duration `koanf:"default_timeout"`
	MaxTimeout     time.Duration `koanf:"max_timeout"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
	WaitDelay      time.Duration `koanf:"wait_delay"`
	Blocklist      []string      `koanf:"blocklist"`
}

// RateLimitConfig configures the sliding-window admission gate.
type RateLimitConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

// VerifyConfig configures post-redaction leak checks.
type VerifyConfig struct {
	EncodedVariants        bool    `koanf:"encoded_variants"`
	ResidualScan           bool    `koanf:"residual_scan"`
	ResidualScansPerSecond float64 `koanf:"residual_scans_per_second"`
	AllowlistPath          string  `koanf:"allowlist_path"`
}

// HTTPConfig configures the optional operator HTTP endpoint.
type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol        string        `koanf:"protocol"`
	Insecure        bool          `koanf:"insecure"`
	SampleRate      float64       `koanf:"sample_rate"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultBlocklist is applied when executor.blocklist is not configured.
var DefaultBlocklist = []string{
	"sudo",
	"su",
	"rm -rf /",
	"mkfs",
	"dd if=/dev/zero",
	"shutdown",
	"reboot",
	"halt",
	"printenv",
	"env",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Redaction: RedactionConfig{
			Mode:        ModePlaceholder,
			ProbeBudget: 10 * time.Millisecond,
		},
		Executor: ExecutorConfig{
			Shell:          "/bin/sh",
			DefaultTimeout: 30 * time.Second,
			MaxTimeout:     10 * time.Minute,
			MaxOutputBytes: 10 * 1024 * 1024,
			WaitDelay:      2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 30,
			Window:      time.Minute,
		},
		Verify: VerifyConfig{
			EncodedVariants:        true,
			ResidualScan:           true,
			ResidualScansPerSecond: 5,
		},
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 9191,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SampleRate:      1.0,
			MetricsInterval: 15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// applyDefaults fills list fields that cannot be pre-seeded before unmarshal.
func applyDefaults(cfg *Config) {
	if cfg.Executor.Blocklist == nil {
		cfg.Executor.Blocklist = append([]string(nil), DefaultBlocklist...)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Redaction.Mode {
	case ModePlaceholder, ModeAsterisk, ModePartial:
	default:
		errs = append(errs, fmt.Errorf("redaction.mode must be one of placeholder, asterisk, partial, got %q", c.Redaction.Mode))
	}
	if c.Redaction.ProbeBudget <= 0 {
		errs = append(errs, errors.New("redaction.probe_budget must be > 0"))
	}

	if c.Executor.Shell == "" {
		errs = append(errs, errors.New("executor.shell is required"))
	}
	if c.Executor.DefaultTimeout <= 0 {
		errs = append(errs, errors.New("executor.default_timeout must be > 0"))
	}
	if c.Executor.MaxTimeout < c.Executor.DefaultTimeout {
		errs = append(errs, fmt.Errorf("executor.max_timeout (%s) must be >= executor.default_timeout (%s)",
			c.Executor.MaxTimeout, c.Executor.DefaultTimeout))
	}
	if c.Executor.MaxOutputBytes <= 0 {
		errs = append(errs, errors.New("executor.max_output_bytes must be > 0"))
	}
	for i, entry := range c.Executor.Blocklist {
		if entry == "" {
			errs = append(errs, fmt.Errorf("executor.blocklist[%d] is empty", i))
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			errs = append(errs, errors.New("rate_limit.max_requests must be > 0 when enabled"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be > 0 when enabled"))
		}
	}

	if c.Verify.ResidualScan && c.Verify.ResidualScansPerSecond <= 0 {
		errs = append(errs, errors.New("verify.residual_scans_per_second must be > 0 when residual_scan is enabled"))
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", c.HTTP.Port))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		errs = append(errs, c.Telemetry.validate()...)
	}

	return errors.Join(errs...)
}

func (t TelemetryConfig) validate() []error {
	var errs []error
	if t.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when enabled"))
	}
	if t.Protocol != "grpc" && t.Protocol != "http/protobuf" {
		errs = append(errs, fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", t.Protocol))
	}
	if t.Insecure && !isLocalEndpoint(t.Endpoint) {
		errs = append(errs, errors.New("telemetry.insecure is only allowed for local endpoints"))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", t.SampleRate))
	}
	if t.MetricsInterval <= 0 {
		errs = append(errs, errors.New("telemetry.metrics_interval must be > 0"))
	}
	if t.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("telemetry.shutdown_timeout must be > 0"))
	}
	return errs
}

// Duration is a time.Duration written as a Go duration string ("250ms",
// "1m30s") in config files and JSON. Negative values are rejected.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string {
	return d.Duration().String()
}

// Duration converts back to time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// isLocalEndpoint accepts host, host:port, [v6]:port and scheme-prefixed forms.
func isLocalEndpoint(endpoint string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
