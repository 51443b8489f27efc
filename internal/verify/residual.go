package verify

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"golang.org/x/time/rate"
)

// finding is a residual detection. The matched text is kept only long
// enough to filter it; it is never logged.
type finding struct {
	RuleID string
	Desc   string
	match  string
}

// residualScanner runs the gitleaks default rule set over scrubbed output.
// The detector is built on first use and shared; Detect calls are
// serialized.
type residualScanner struct {
	allowlist *Allowlist
	limiter   *rate.Limiter

	once     sync.Once
	initErr  error
	mu       sync.Mutex
	detector *detect.Detector
	filters  []*regexp.Regexp
}

func newResidualScanner(allowlist *Allowlist, perSecond float64) *residualScanner {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &residualScanner{
		allowlist: allowlist,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

func (r *residualScanner) init() {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		r.initErr = fmt.Errorf("failed to build residual detector: %w", err)
		return
	}

	patterns := r.allowlist.patterns()
	global := &gitleaksConfig.Allowlist{
		Description: "secretsh placeholders and operator allowlist",
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			r.initErr = fmt.Errorf("%w: %s: %v", ErrInvalidRegex, p, err)
			return
		}
		r.filters = append(r.filters, re)
		global.Regexes = append(global.Regexes, gitleaksRegexp.MustCompile(p))
	}
	detector.Config.Allowlists = append(detector.Config.Allowlists, global)
	r.detector = detector
}

// scan returns residual findings in content. ok is false when the scan was
// skipped by the throttle.
func (r *residualScanner) scan(content string) (findings []finding, ok bool, err error) {
	if !r.limiter.Allow() {
		return nil, false, nil
	}
	r.once.Do(r.init)
	if r.initErr != nil {
		return nil, true, r.initErr
	}

	r.mu.Lock()
	raw := r.detector.DetectString(content)
	r.mu.Unlock()

	for _, f := range raw {
		if r.filtered(f.Secret) {
			continue
		}
		findings = append(findings, finding{RuleID: f.RuleID, Desc: f.Description, match: f.Secret})
	}
	return findings, true, nil
}

func (r *residualScanner) filtered(secret string) bool {
	if strings.TrimSpace(secret) == "" {
		return true
	}
	for _, re := range r.filters {
		if re.MatchString(secret) {
			return true
		}
	}
	return false
}
