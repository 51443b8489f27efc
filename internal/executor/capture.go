package executor

import (
	"bytes"
	"sync"
	"unicode/utf8"
)

// capture buffers one output stream up to max bytes. Writes past the cap
// are accepted and dropped so the child never blocks on a full pipe.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	remaining int
	truncated bool
}

func newCapture(max int) *capture {
	return &capture{remaining: max}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	chunk := p
	if len(chunk) > c.remaining {
		chunk = chunk[:c.remaining]
		c.truncated = true
	}
	c.buf.Write(chunk)
	c.remaining -= len(chunk)
	return len(p), nil
}

// text returns the captured output as raw bytes. When the stream was
// truncated, the last trim bytes are dropped as well: a secret cut in half
// at the cap would not match during scrubbing. A rune split by the cut is
// dropped too. Invalid UTF-8 the child wrote is left in place so known
// values containing it still match.
func (c *capture) text(trim int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buf.Bytes()
	if c.truncated {
		if trim >= len(b) {
			b = nil
		} else if trim > 0 {
			b = b[:len(b)-trim]
		}
		b = dropPartialRune(b)
	}
	return string(b), c.truncated
}

// dropPartialRune removes an incomplete multibyte sequence from the end of b.
func dropPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		return b
	}
	return b
}
