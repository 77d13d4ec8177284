//go:build !windows

package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// signalWorker delivers sig to the worker's process group so that children
// the worker itself has spawned receive it as well. A group that is already
// gone is treated as the late-signal no-op case.
func signalWorker(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal worker process group: %w", err)
	}
	return nil
}

// exitCodeFromError maps the outcome of cmd.Wait to the supervisor's own
// exit code. A worker killed by a signal reports 128 plus the signal number,
// matching shell conventions (143 for SIGTERM).
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
