package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/BurntSushi/toml"
)

// placeholderPattern matches the markers left by the scrubber in every mode.
const placeholderPattern = `\[REDACTED:[A-Z0-9_]+\]|\*{3,}`

// Allowlist holds content patterns the residual scan ignores.
type Allowlist struct {
	Regexes []string
}

// LoadAllowlist reads a gitleaks-style TOML file:
//
//	[allowlist]
//	regexes = ['''EXAMPLE_KEY_.*''']
//
// A missing file yields an empty allowlist. An empty path is the same as a
// missing file.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}

	var doc struct {
		Allowlist struct {
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Allowlist{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range doc.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}
	return &Allowlist{Regexes: doc.Allowlist.Regexes}, nil
}

// patterns returns the allowlist regexes plus the placeholder pattern.
func (a *Allowlist) patterns() []string {
	out := []string{placeholderPattern}
	if a != nil {
		out = append(out, a.Regexes...)
	}
	return out
}
