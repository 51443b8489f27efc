package executor

import (
	"regexp"
	"strings"
)

// blockRule matches one blocklist entry as a whole word, where words are
// separated by whitespace or the shell operators | & ;.
type blockRule struct {
	entry string
	re    *regexp.Regexp
}

func compileBlocklist(entries []string) []blockRule {
	rules := make([]blockRule, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rules = append(rules, blockRule{
			entry: entry,
			re:    regexp.MustCompile(`(^|[\s|&;])` + regexp.QuoteMeta(entry) + `($|[\s|&;])`),
		})
	}
	return rules
}

// blocked returns the first entry that matches command.
func blocked(rules []blockRule, command string) (string, bool) {
	for _, r := range rules {
		if r.re.MatchString(command) {
			return r.entry, true
		}
	}
	return "", false
}
