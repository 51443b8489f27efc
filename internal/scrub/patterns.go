package scrub

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// CustomLabel is the label reported for every custom pattern match.
const CustomLabel = "CUSTOM_PATTERN"

// DefaultProbeBudget bounds each probe run during pattern validation.
const DefaultProbeBudget = 10 * time.Millisecond

// ErrPatternRejected is wrapped by every custom pattern validation failure.
var ErrPatternRejected = errors.New("custom pattern rejected")

// PatternError names the custom pattern that failed validation.
type PatternError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *PatternError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("custom pattern %q rejected: %s: %v", e.Pattern, e.Reason, e.Err)
	}
	return fmt.Sprintf("custom pattern %q rejected: %s", e.Pattern, e.Reason)
}

func (e *PatternError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPatternRejected, e.Err}
	}
	return []error{ErrPatternRejected}
}

// probes are inputs that make backtracking engines blow up on ambiguous
// nested quantifiers. The last two end in a character no such pattern
// accepts, forcing the engine to exhaust every split of the prefix.
var probes = []string{
	"",
	"aaaa",
	strings.Repeat("a", 16),
	strings.Repeat("a", 28) + "!",
	strings.Repeat("ab", 14) + "!",
}

// customRule is a validated operator pattern.
type customRule struct {
	source string
	re     *regexp2.Regexp
}

// compileCustom compiles source and runs it against the probe battery.
// The compiled pattern keeps budget as its match timeout, so a pattern that
// slips past the probes still cannot stall a real scrub.
func compileCustom(source string, budget time.Duration) (*customRule, error) {
	re, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		return nil, &PatternError{Pattern: source, Reason: "compile failed", Err: err}
	}
	re.MatchTimeout = budget

	for _, probe := range probes {
		start := time.Now()
		_, err := re.MatchString(probe)
		elapsed := time.Since(start)
		if err != nil {
			return nil, &PatternError{
				Pattern: source,
				Reason:  fmt.Sprintf("probe of length %d exceeded %s", len(probe), budget),
				Err:     err,
			}
		}
		if elapsed > budget {
			return nil, &PatternError{
				Pattern: source,
				Reason:  fmt.Sprintf("probe of length %d took %s (budget %s)", len(probe), elapsed, budget),
			}
		}
	}

	return &customRule{source: source, re: re}, nil
}
