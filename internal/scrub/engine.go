package scrub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/logging"
)

// Config configures an Engine.
type Config struct {
	// Mode selects the replacement rendering (default: placeholder).
	Mode Mode

	// CustomPatterns are operator-supplied patterns; every match is
	// labelled CUSTOM_PATTERN.
	CustomPatterns []string

	// ProbeBudget bounds each validation probe and each real match of a
	// custom pattern (default: 10ms).
	ProbeBudget time.Duration
}

// Engine redacts secrets from text.
type Engine struct {
	mode   Mode
	rules  []Rule
	custom []*customRule
	logger *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report custom patterns that time out
// during scrubbing.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New validates cfg and builds an Engine. A custom pattern that fails to
// compile or trips the probe battery rejects the whole engine with a
// *PatternError naming the pattern.
func New(cfg Config, opts ...Option) (*Engine, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	budget := cfg.ProbeBudget
	if budget <= 0 {
		budget = DefaultProbeBudget
	}

	e := &Engine{
		mode:   mode,
		rules:  builtinRules,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, source := range cfg.CustomPatterns {
		rule, err := compileCustom(source, budget)
		if err != nil {
			return nil, err
		}
		e.custom = append(e.custom, rule)
	}

	return e, nil
}

// MustNew builds an Engine, panicking on error.
func MustNew(cfg Config, opts ...Option) *Engine {
	e, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Mode returns the engine's redaction mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Scrub removes known secret values and secret-shaped tokens from text.
//
// Known values are replaced first, longest value first, and count once per
// name that occurred. Built-in and custom rules then count once per match.
// No pass rewrites inside a replacement made by an earlier one.
func (e *Engine) Scrub(text string, known map[string]string) Result {
	start := time.Now()
	res := Result{ByLabel: make(map[string]int)}

	var spans []masked
	text, spans = e.scrubKnown(text, spans, known, &res)
	for _, rule := range e.rules {
		text, spans = e.scrubRule(text, spans, rule, &res)
	}
	for _, rule := range e.custom {
		text, spans = e.scrubCustom(text, spans, rule, &res)
	}

	res.Text = text
	res.Duration = time.Since(start)
	return res
}

// knownSecret is one name/value pair of the known-value pass.
type knownSecret struct {
	name, value string
}

func (e *Engine) scrubKnown(text string, spans []masked, known map[string]string, res *Result) (string, []masked) {
	secrets := make([]knownSecret, 0, len(known))
	for name, value := range known {
		if value != "" {
			secrets = append(secrets, knownSecret{name, value})
		}
	}
	// A value that contains another must be replaced before it is broken up.
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i].value) != len(secrets[j].value) {
			return len(secrets[i].value) > len(secrets[j].value)
		}
		return secrets[i].name < secrets[j].name
	})

	for _, s := range secrets {
		var repl []replacement
		for pos := 0; pos < len(text); {
			i := strings.Index(text[pos:], s.value)
			if i < 0 {
				break
			}
			start, end := pos+i, pos+i+len(s.value)
			if overlaps(spans, start, end) {
				pos = start + 1
				continue
			}
			repl = append(repl, replacement{start, end, e.mode.Mask(s.value, s.name)})
			pos = end
		}
		if len(repl) == 0 {
			continue
		}
		text, spans = apply(text, spans, repl)
		res.add(s.name)
	}
	return text, spans
}

func (e *Engine) scrubRule(text string, spans []masked, rule Rule, res *Result) (string, []masked) {
	var repl []replacement
	for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if len(m) >= 4 && m[2] >= 0 {
			start, end = m[2], m[3]
		}
		if start == end || overlaps(spans, start, end) {
			continue
		}
		repl = append(repl, replacement{start, end, e.mode.Mask(text[start:end], rule.Label)})
		res.add(rule.Label)
	}
	return apply(text, spans, repl)
}

// scrubCustom maps regexp2's rune offsets back to bytes so the replacement
// happens on the original text, invalid bytes included.
func (e *Engine) scrubCustom(text string, spans []masked, rule *customRule, res *Result) (string, []masked) {
	offs := runeOffsets(text)
	var repl []replacement
	last := 0

	m, err := rule.re.FindRunesMatch([]rune(text))
	for ; m != nil && err == nil; m, err = rule.re.FindNextMatch(m) {
		from, to := span(m)
		if from == to {
			continue
		}
		start, end := offs[from], offs[to]
		if start < last || overlaps(spans, start, end) {
			continue
		}
		repl = append(repl, replacement{start, end, e.mode.Mask(text[start:end], CustomLabel)})
		last = end
		res.add(CustomLabel)
	}
	if err != nil {
		// Replacements made before the timeout are kept.
		e.logger.Warn(context.Background(), "custom pattern abandoned for this scrub",
			zap.String("pattern", rule.source),
			zap.Error(err),
		)
	}

	return apply(text, spans, repl)
}

// span returns the rune range to redact: group 1 when the pattern
// captured one, otherwise the whole match.
func span(m *regexp2.Match) (int, int) {
	if groups := m.Groups(); len(groups) > 1 && len(groups[1].Captures) > 0 {
		g := groups[1]
		return g.Index, g.Index + g.Length
	}
	return m.Index, m.Index + m.Length
}

// String describes the engine configuration without pattern contents.
func (e *Engine) String() string {
	return fmt.Sprintf("scrub.Engine{mode=%s builtin=%d custom=%d}", e.mode, len(e.rules), len(e.custom))
}
