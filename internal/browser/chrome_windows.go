//go:build windows

package browser

import (
	"os"
	"os/exec"
)

// setChromeProcessGroup is a no-op on Windows; there are no Unix process
// groups to set up.
func setChromeProcessGroup(cmd *exec.Cmd) {
}

// killChromeProcessGroup kills the Chrome process on Windows. Child process
// cleanup is left to Chrome itself.
func killChromeProcessGroup(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	if force {
		_ = cmd.Process.Kill()
	} else {
		_ = cmd.Process.Signal(os.Interrupt)
	}
}
