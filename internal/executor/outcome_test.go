package executor

import (
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlement_FirstOutcomeWins(t *testing.T) {
	s := &settlement{}
	assert.Equal(t, pending, s.result().kind)

	assert.True(t, s.settle(outcome{kind: timedOut}))
	assert.False(t, s.settle(outcome{kind: exited, code: 0}))
	assert.False(t, s.settle(outcome{kind: canceled}))
	assert.Equal(t, timedOut, s.result().kind)
}

func TestSettlement_Concurrent(t *testing.T) {
	s := &settlement{}
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := exited
			if i%2 == 0 {
				kind = timedOut
			}
			if s.settle(outcome{kind: kind, code: i}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "pending", pending.String())
	assert.Equal(t, "timeout", timedOut.String())
	assert.Equal(t, "exited", exited.String())
	assert.Equal(t, "spawn_failed", spawnFailed.String())
	assert.Equal(t, "canceled", canceled.String())
}

func TestCapture(t *testing.T) {
	c := newCapture(8)
	n, err := c.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = c.Write([]byte(" world"))
	assert.NoError(t, err)
	assert.Equal(t, 6, n, "writes past the cap are accepted")
	n, _ = c.Write([]byte("more"))
	assert.Equal(t, 4, n)

	text, cut := c.text(0)
	assert.True(t, cut)
	assert.Equal(t, "hello wo", text)

	text, _ = c.text(3)
	assert.Equal(t, "hello", text)

	text, _ = c.text(100)
	assert.Empty(t, text)
}

func TestCapture_NoTrimWhenComplete(t *testing.T) {
	c := newCapture(64)
	_, _ = c.Write([]byte("complete output"))
	text, cut := c.text(5)
	assert.False(t, cut)
	assert.Equal(t, "complete output", text)
}

func TestCapture_DropsBrokenRune(t *testing.T) {
	c := newCapture(4)
	_, _ = c.Write([]byte("ab€"))
	text, cut := c.text(0)
	assert.True(t, cut)
	assert.Equal(t, "ab", text)
}

func TestCapture_KeepsInvalidBytes(t *testing.T) {
	c := newCapture(64)
	_, _ = c.Write([]byte("corp\xe9Passw0rdValue\n"))
	text, cut := c.text(0)
	assert.False(t, cut)
	assert.Equal(t, "corp\xe9Passw0rdValue\n", text)
}

func TestCapture_TrimThenDropsBrokenRune(t *testing.T) {
	c := newCapture(7)
	_, _ = c.Write([]byte("ab€cdefgh"))
	// "ab€cd" is 7 bytes; trimming 3 leaves "ab" and two bytes of €.
	text, cut := c.text(3)
	assert.True(t, cut)
	assert.Equal(t, "ab", text)
}

func TestDropPartialRune(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"ab€", "ab€"},
		{"ab\xe2\x82", "ab"},
		{"ab\xe2", "ab"},
		{"ab\xf0\x9f\x98", "ab"},
		{"ab\x82", "ab\x82"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(dropPartialRune([]byte(tt.in))), "%q", tt.in)
	}
}

func TestStatus_Rejected(t *testing.T) {
	for _, s := range []Status{StatusBlocked, StatusTimeout, StatusCanceled, StatusRateLimited, StatusUnknownSecrets} {
		assert.True(t, s.Rejected(), s)
	}
	for _, s := range []Status{StatusCompleted, StatusSpawnFailed, ""} {
		assert.False(t, s.Rejected(), s)
	}
}

func TestBuildEnv(t *testing.T) {
	base := []string{"PATH=/bin", "API_KEY=old", "HOME=/root", "EMPTY="}
	env := buildEnv(base, map[string]string{"API_KEY": "new", "DB_PASS": "pw"})

	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "EMPTY=", "API_KEY=new", "DB_PASS=pw"}, env)
	assert.Equal(t, []string{"PATH=/bin", "API_KEY=old", "HOME=/root", "EMPTY="}, base, "base is not modified")

	for _, kv := range env {
		assert.False(t, strings.HasPrefix(kv, "API_KEY=old"))
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, 0, normalizeCode(0))
	assert.Equal(t, 42, normalizeCode(42))
	assert.Equal(t, 1, normalizeCode(-1))
}

func TestExitOutcome(t *testing.T) {
	o := exitOutcome(nil, nil)
	assert.Equal(t, outcome{kind: exited, code: 0}, o)

	var cmdErr = errors.New("boom")
	o = exitOutcome(&exec.Cmd{}, cmdErr)
	assert.Equal(t, exited, o.kind)
	assert.Equal(t, 1, o.code)
	assert.ErrorIs(t, o.err, cmdErr)
}
