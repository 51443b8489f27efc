package scrub

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode selects how a matched secret is rendered.
type Mode string

const (
	// ModePlaceholder renders [REDACTED:<label>].
	ModePlaceholder Mode = "placeholder"
	// ModeAsterisk renders one asterisk per character of the match.
	ModeAsterisk Mode = "asterisk"
	// ModePartial keeps the first and last three characters of long matches.
	ModePartial Mode = "partial"
)

const (
	partialKeep   = 3
	partialMarker = "***"
)

// ParseMode validates a mode string. The empty string selects ModePlaceholder.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModePlaceholder, nil
	case ModePlaceholder, ModeAsterisk, ModePartial:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown redaction mode %q", s)
	}
}

// Mask renders match under this mode. Lengths are counted in characters,
// not bytes.
func (m Mode) Mask(match, label string) string {
	switch m {
	case ModeAsterisk:
		return strings.Repeat("*", utf8.RuneCountInString(match))
	case ModePartial:
		runes := []rune(match)
		if len(runes) <= 2*partialKeep {
			return strings.Repeat("*", len(runes))
		}
		return string(runes[:partialKeep]) + partialMarker + string(runes[len(runes)-partialKeep:])
	default:
		return "[REDACTED:" + label + "]"
	}
}
