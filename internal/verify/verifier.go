package verify

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/logging"
)

// Category classifies why a secret survived scrubbing.
type Category string

const (
	// FormatMismatch means a declared value is still present literally.
	FormatMismatch Category = "format_mismatch"
	// EncodingBypass means an encoded form of a declared value is present.
	EncodingBypass Category = "encoding_bypass"
	// MissingCustomPattern means an undeclared secret-shaped token is present
	// that no rule covers.
	MissingCustomPattern Category = "missing_custom_pattern"
)

// minEncodedLength is the shortest value whose encodings are searched.
// Shorter values produce encodings too common to be meaningful.
const minEncodedLength = 8

// Gap is one redaction failure. Secret names the declared secret, or is
// empty for an undeclared residual finding. Rule names the encoding or
// detector rule that found it.
type Gap struct {
	Secret   string
	Category Category
	Rule     string
}

// Config selects the checks beyond the literal one.
type Config struct {
	EncodedVariants bool
	ResidualScan    bool
	// ScansPerSecond throttles the residual scan. Zero means unthrottled.
	ScansPerSecond float64
	Allowlist      *Allowlist
}

// Verifier runs post-redaction checks. It is safe for concurrent use.
type Verifier struct {
	cfg      Config
	logger   *logging.Logger
	residual *residualScanner
}

// New creates a Verifier. A nil logger discards warnings.
func New(cfg Config, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	v := &Verifier{cfg: cfg, logger: logger.Named("verify")}
	if cfg.ResidualScan {
		v.residual = newResidualScanner(cfg.Allowlist, cfg.ScansPerSecond)
	}
	return v
}

// Check inspects scrubbed stdout and stderr against the injected secrets
// and logs a warning for every gap. The returned gaps are for metrics only.
func (v *Verifier) Check(ctx context.Context, stdout, stderr string, secrets map[string]string) []Gap {
	if v == nil {
		return nil
	}

	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	var gaps []Gap
	for _, name := range names {
		value := secrets[name]
		if value == "" {
			continue
		}
		if strings.Contains(stdout, value) || strings.Contains(stderr, value) {
			gaps = append(gaps, Gap{Secret: name, Category: FormatMismatch, Rule: "literal"})
			continue
		}
		if !v.cfg.EncodedVariants || len(value) < minEncodedLength {
			continue
		}
		for _, enc := range encodings(value) {
			if strings.Contains(stdout, enc.value) || strings.Contains(stderr, enc.value) {
				gaps = append(gaps, Gap{Secret: name, Category: EncodingBypass, Rule: enc.name})
				break
			}
		}
	}

	if v.residual != nil {
		gaps = append(gaps, v.residualGaps(ctx, stdout+"\n"+stderr, secrets)...)
	}

	for _, g := range gaps {
		v.logger.Warn(ctx, "redaction gap detected",
			zap.String("secret", g.Secret),
			zap.String("category", string(g.Category)),
			zap.String("rule", g.Rule),
		)
	}
	return gaps
}

func (v *Verifier) residualGaps(ctx context.Context, content string, secrets map[string]string) []Gap {
	findings, ok, err := v.residual.scan(content)
	if err != nil {
		v.logger.Warn(ctx, "residual scan unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		v.logger.Debug(ctx, "residual scan throttled")
		return nil
	}

	declared := make(map[string]bool, len(secrets))
	for _, value := range secrets {
		declared[value] = true
	}

	var gaps []Gap
	seen := make(map[string]bool)
	for _, f := range findings {
		if declared[f.match] {
			continue
		}
		key := f.RuleID + "\x00" + f.match
		if seen[key] {
			continue
		}
		seen[key] = true
		gaps = append(gaps, Gap{Category: MissingCustomPattern, Rule: f.RuleID})
	}
	return gaps
}

type encoded struct {
	name  string
	value string
}

// encodings returns the encoded forms of value that differ from it.
func encodings(value string) []encoded {
	b := []byte(value)
	candidates := []encoded{
		{"base64", base64.StdEncoding.EncodeToString(b)},
		{"base64_raw", base64.RawStdEncoding.EncodeToString(b)},
		{"base64_url", base64.URLEncoding.EncodeToString(b)},
		{"base64_url_raw", base64.RawURLEncoding.EncodeToString(b)},
		{"hex", hex.EncodeToString(b)},
		{"hex_upper", strings.ToUpper(hex.EncodeToString(b))},
		{"url_query", url.QueryEscape(value)},
		{"url_path", url.PathEscape(value)},
	}

	out := candidates[:0]
	seen := map[string]bool{value: true}
	for _, c := range candidates {
		if seen[c.value] {
			continue
		}
		seen[c.value] = true
		out = append(out, c)
	}
	return out
}
