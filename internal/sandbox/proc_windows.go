//go:build windows

package sandbox

import (
	"os/exec"
	"strconv"
	"time"
)

func setProcGroup(cmd *exec.Cmd) {
	// Process groups are a unix concept; taskkill handles the tree.
}

// terminateTree kills the process and its descendants via taskkill /T.
func terminateTree(pid int, done <-chan error, grace time.Duration) {
	_ = exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()

	select {
	case <-done:
	case <-time.After(grace):
		<-done
	}
}
