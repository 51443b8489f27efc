// Package scrub removes secret material from text.
//
// An Engine runs three passes in a fixed order: literal values the caller
// declared, the built-in rule table of secret-token shapes, and operator
// supplied custom patterns. Each replacement is rendered by the engine's
// Mode. Engines are immutable after New and safe for concurrent use.
package scrub
