//go:build !windows

package background

import (
	"os/exec"
	"syscall"
)

// Detach puts cmd in a new process group once it starts, so a ^C sent to
// the terminal's foreground group does not reach it. Call before
// StartProcess.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
