package scrub

import "regexp"

// Rule is a built-in secret shape. When Pattern has a capture group only
// the first group is redacted, so surrounding context such as a URL scheme
// or an "Authorization: Bearer" prefix stays readable.
type Rule struct {
	Label       string
	Description string
	Pattern     *regexp.Regexp
}

// builtinRules is ordered: more specific shapes come before broader ones
// that would also match them (Anthropic before OpenAI, JWT before bearer).
var builtinRules = []Rule{
	{"STRIPE_LIVE_KEY", "Stripe live secret key", regexp.MustCompile(`sk_live_[0-9A-Za-z]{6,}`)},
	{"STRIPE_TEST_KEY", "Stripe test secret key", regexp.MustCompile(`sk_test_[0-9A-Za-z]{6,}`)},
	{"STRIPE_RESTRICTED_KEY", "Stripe restricted key", regexp.MustCompile(`rk_(?:live|test)_[0-9A-Za-z]{6,}`)},
	{"AWS_ACCESS_KEY", "AWS access key ID", regexp.MustCompile(`\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`)},
	{"AWS_SECRET_KEY", "AWS secret access key assignment", regexp.MustCompile(`(?i)aws_?secret_?(?:access_?)?key["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})`)},
	{"GITHUB_TOKEN", "GitHub token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"GITHUB_FINE_GRAINED_TOKEN", "GitHub fine-grained personal access token", regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,}`)},
	{"GITLAB_TOKEN", "GitLab personal access token", regexp.MustCompile(`\bglpat-[A-Za-z0-9_\-]{20,}`)},
	{"SLACK_TOKEN", "Slack token", regexp.MustCompile(`\bxox[abposr]-[A-Za-z0-9\-]{10,}`)},
	{"SLACK_WEBHOOK", "Slack incoming webhook", regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9_/\-]+`)},
	{"ANTHROPIC_API_KEY", "Anthropic API key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}`)},
	{"OPENAI_API_KEY", "OpenAI API key", regexp.MustCompile(`\bsk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_\-]{20,}`)},
	{"GOOGLE_API_KEY", "Google API key", regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}`)},
	{"JWT_TOKEN", "JSON Web Token", regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{5,}\.eyJ[A-Za-z0-9_\-]{5,}\.[A-Za-z0-9_\-]{5,}`)},
	{"BEARER_TOKEN", "Bearer credential", regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9\-._~+/]{8,}=*)`)},
	{"PRIVATE_KEY", "PEM private key block", regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----[\s\S]*?-----END (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`)},
	{"NPM_TOKEN", "npm access token", regexp.MustCompile(`\bnpm_[A-Za-z0-9]{36}\b`)},
	{"SENDGRID_API_KEY", "SendGrid API key", regexp.MustCompile(`\bSG\.[A-Za-z0-9_\-]{22}\.[A-Za-z0-9_\-]{43}\b`)},
	{"DATABASE_URL_PASSWORD", "Password in a connection URL", regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.\-]*://[^:/\s@]+:([^@\s]+)@`)},
}

// BuiltinRules returns a copy of the built-in rule table.
func BuiltinRules() []Rule {
	out := make([]Rule, len(builtinRules))
	copy(out, builtinRules)
	return out
}
