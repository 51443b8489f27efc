// Package verify checks scrubbed command output for secret material that
// survived redaction and reports each gap to the operator log.
//
// Gaps are advisory. They are never returned to the caller of an execution
// and never fail it.
package verify

import "errors"

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)
