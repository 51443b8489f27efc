package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "SECRETSH_"

	// LocalFileName is the project-level config file, resolved against the working directory.
	LocalFileName = ".secretsh.yaml"
)

// ErrInsecureConfigFile is returned when a config file is writable by group or others.
var ErrInsecureConfigFile = errors.New("insecure config file")

// listKeys are split on commas when set through the environment.
var listKeys = map[string]bool{
	"secrets.files":      true,
	"executor.blocklist": true,
}

// DefaultGlobalPath returns ~/.config/secretsh/config.yaml.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "secretsh", "config.yaml"), nil
}

// Load reads the global config file and the project config file, then
// applies environment overrides.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SECRETSH_EXECUTOR__DEFAULT_TIMEOUT, ...)
//  2. Project file (./.secretsh.yaml)
//  3. Global file (~/.config/secretsh/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	global, err := DefaultGlobalPath()
	if err != nil {
		return nil, err
	}
	return LoadFiles(global, LocalFileName)
}

// LoadFiles loads the given YAML files in order, later files overriding
// earlier ones, then environment variables. Missing files are skipped.
//
// # Environment Variable Mapping
//
// Variables carry the SECRETSH_ prefix and use a double underscore between
// section and field so that field names keep their single underscores:
//
//	SECRETSH_EXECUTOR__DEFAULT_TIMEOUT -> executor.default_timeout
//	SECRETSH_RATE_LIMIT__MAX_REQUESTS  -> rate_limit.max_requests
//	SECRETSH_SECRETS__FILES=a.env,b.env -> secrets.files = [a.env b.env]
func LoadFiles(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if path == "" {
			continue
		}
		content, err := readConfigFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps SECRETSH_SECTION__FIELD_NAME to section.field_name.
func envTransform(key, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(lower, "__", 2)
	if len(parts) == 1 {
		return lower, value
	}

	path := parts[0] + "." + parts[1]
	if listKeys[path] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return path, items
	}
	return path, value
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a TOCTOU race between checks and read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file %s validation failed: %w", path, err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file type, permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm&0o022 != 0 {
			return fmt.Errorf("%w: permissions %v allow group or world write", ErrInsecureConfigFile, perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// EnsureConfigDir creates the secretsh config directory with 0700 permissions.
func EnsureConfigDir() error {
	global, err := DefaultGlobalPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(global)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}
