package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/secretsh/internal/logging"
)

const maxSourceFileSize = 1024 * 1024 // 1MB

var (
	// ErrSourceTooLarge is returned for source files over the size limit.
	ErrSourceTooLarge = errors.New("secret source file too large")

	// ErrInvalidSource is returned when a source file cannot be parsed.
	ErrInvalidSource = errors.New("invalid secret source")
)

// Loader reads secret source files into a Store.
type Loader struct {
	logger *logging.Logger
}

// NewLoader creates a Loader. A nil logger discards diagnostics.
func NewLoader(logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{logger: logger}
}

// Load applies paths to store in order. Each path is applied at most once
// per call; later files override earlier ones for the same key. Missing
// files are skipped. The source identifier recorded in the store is the
// path as given.
func (l *Loader) Load(ctx context.Context, store *Store, paths ...string) error {
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		resolved, err := ExpandPath(path)
		if err != nil {
			return err
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true

		values, err := l.readSource(ctx, resolved)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Debug(ctx, "secret source not found, skipping", zap.String("source", path))
				continue
			}
			return err
		}

		// Map iteration is random; sort so insertion order is reproducible.
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			store.Set(k, values[k], path)
		}

		l.logger.Info(ctx, "loaded secret source",
			zap.String("source", path),
			zap.Int("count", len(values)),
		)
	}
	return nil
}

// readSource opens the file once and checks size and permissions through
// the open descriptor.
func (l *Loader) readSource(ctx context.Context, path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open secret source %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat secret source %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidSource, path)
	}
	if info.Size() > maxSourceFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrSourceTooLarge, path, info.Size(), maxSourceFileSize)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		l.logger.Warn(ctx, "secret source is readable by group or others",
			zap.String("source", path),
			zap.String("mode", info.Mode().Perm().String()),
		)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxSourceFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret source %s: %w", path, err)
	}

	values, err := Parse(path, content)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Parse decodes content by the extension of name: .toml, .yaml, .yml and
// .json are structured formats whose nested keys are flattened with "_";
// anything else is read as dotenv.
func Parse(name string, content []byte) (map[string]string, error) {
	var (
		raw map[string]interface{}
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		_, err = toml.NewDecoder(bytes.NewReader(content)).Decode(&raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &raw)
	case ".json":
		err = json.Unmarshal(content, &raw)
	default:
		values, derr := godotenv.Parse(bytes.NewReader(content))
		if derr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, name, derr)
		}
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, name, err)
	}

	values := make(map[string]string)
	if err := flatten("", raw, values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, name, err)
	}
	return values, nil
}

// flatten joins nested keys with "_" and upper-cases them, so
// {database: {password: x}} becomes DATABASE_PASSWORD.
func flatten(prefix string, in map[string]interface{}, out map[string]string) error {
	for k, v := range in {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]interface{}:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case string:
			out[key] = val
		case bool:
			out[key] = strconv.FormatBool(val)
		case int:
			out[key] = strconv.Itoa(val)
		case int64:
			out[key] = strconv.FormatInt(val, 10)
		case uint64:
			out[key] = strconv.FormatUint(val, 10)
		case float64:
			out[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			out[key] = ""
		default:
			return fmt.Errorf("key %s: unsupported value type %T", key, v)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
