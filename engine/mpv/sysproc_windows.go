//go:build windows

package mpv

import (
	"os/exec"
	"syscall"
)

// sysProcAttr is nil: Windows has no process groups to detach into.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
