//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup places the child in its own process group so the whole
// tree can be signalled at once.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree terminates the process group rooted at pid: SIGTERM
// first, a brief grace period for children to exit, then SIGKILL for
// survivors. done receives the wait result once the root has exited.
func terminateTree(pid int, done <-chan error, grace time.Duration) {
	pgid := -pid

	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-done
	}
}
