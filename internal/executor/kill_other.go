//go:build !unix

package executor

import (
	"errors"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(int) error {
	return errors.ErrUnsupported
}
