//go:build windows

package background

import (
	"os/exec"
	"syscall"
)

// Detach starts cmd in a new process group so console ^C events are not
// delivered to it. Call before StartProcess.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}
