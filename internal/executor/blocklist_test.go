package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/secretsh/internal/config"
)

func TestBlocklist(t *testing.T) {
	rules := compileBlocklist(config.DefaultBlocklist)

	tests := []struct {
		command string
		entry   string
	}{
		{"sudo ls", "sudo"},
		{"ls; sudo rm x", "sudo"},
		{"true && sudo id", "sudo"},
		{"cat x|sudo tee y", "sudo"},
		{"su", "su"},
		{"su - root", "su"},
		{"rm -rf /", "rm -rf /"},
		{"echo ok; rm -rf / ", "rm -rf /"},
		{"printenv", "printenv"},
		{"echo $HOME | env", "env"},
		{"env | grep KEY", "env"},
		{"mkfs.ext4 /dev/sda", ""},
		{"mkfs /dev/sda", "mkfs"},
		{"sudoku --solve", ""},
		{"echo pseudo", ""},
		{"rm -rf /tmp/build", ""},
		{"echo environment", ""},
		{"./envsetup.sh", ""},
		{"echo \"$API_KEY\"", ""},
		{"shutdown -h now", "shutdown"},
		{"dd if=/dev/zero of=/dev/sda", "dd if=/dev/zero"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			entry, ok := blocked(rules, tt.command)
			if tt.entry == "" {
				assert.False(t, ok, "unexpectedly blocked by %q", entry)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.entry, entry)
		})
	}
}

func TestBlocklist_QuotesMetacharacters(t *testing.T) {
	rules := compileBlocklist([]string{"a.b", "  ", "x+"})
	assert.Len(t, rules, 2)

	_, ok := blocked(rules, "run axb")
	assert.False(t, ok)
	_, ok = blocked(rules, "run a.b")
	assert.True(t, ok)
	_, ok = blocked(rules, "xx")
	assert.False(t, ok)
	entry, ok := blocked(rules, "x+ now")
	assert.True(t, ok)
	assert.Equal(t, "x+", entry)
}

func TestBlocklist_FirstEntryWins(t *testing.T) {
	rules := compileBlocklist([]string{"env", "sudo"})
	entry, ok := blocked(rules, "sudo env")
	assert.True(t, ok)
	assert.Equal(t, "env", entry)
}
