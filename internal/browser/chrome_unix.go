//go:build !windows

package browser

import (
	"os/exec"
	"syscall"
)

// setChromeProcessGroup configures Chrome to run in its own process group
// so renderers and helpers share the PGID and die together on shutdown.
func setChromeProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killChromeProcessGroup signals the entire Chrome process group.
// force=false sends SIGTERM, force=true sends SIGKILL.
func killChromeProcessGroup(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	// Negative PID targets the entire process group
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}
