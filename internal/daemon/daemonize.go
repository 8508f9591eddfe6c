package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/npratt/cellpilot/internal/poll"
)

const (
	// daemonEnvVar marks the re-executed background child.
	daemonEnvVar = "CELLPILOT_DAEMONIZED"

	socketWaitTimeout   = 2 * time.Second
	socketCheckInterval = 50 * time.Millisecond
)

// Daemonize re-executes the current command in a new session. The parent
// gets shouldExit=true once the child's socket answers (or the wait
// expires); the child gets shouldExit=false and carries on.
func Daemonize(socketPath string, out io.Writer) (shouldExit bool, pid int, err error) {
	if IsDaemonized() {
		return false, os.Getpid(), nil
	}

	executable, err := os.Executable()
	if err != nil {
		return false, 0, fmt.Errorf("get executable path: %w", err)
	}

	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnvVar+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return false, 0, fmt.Errorf("start daemon: %w", err)
	}
	childPID := cmd.Process.Pid
	_ = cmd.Process.Release()

	if err := waitForSocketReady(socketPath, socketWaitTimeout); err != nil {
		_, _ = fmt.Fprintf(out, "Started daemon (pid %d) - socket not yet available\n", childPID)
	} else {
		_, _ = fmt.Fprintf(out, "Started daemon (pid %d)\n", childPID)
	}
	return true, childPID, nil
}

// IsDaemonized reports whether this process is the background child.
func IsDaemonized() bool {
	return os.Getenv(daemonEnvVar) == "1"
}

// waitForSocketReady polls until the socket accepts a connection.
func waitForSocketReady(socketPath string, timeout time.Duration) error {
	res := poll.Until(context.Background(), poll.Options{Interval: socketCheckInterval, Timeout: timeout},
		func(ctx context.Context) (bool, error) {
			conn, err := net.DialTimeout("unix", socketPath, socketCheckInterval)
			if err != nil {
				return false, nil
			}
			_ = conn.Close()
			return true, nil
		})
	if !res.OK() {
		return fmt.Errorf("socket not available after %v", timeout)
	}
	return nil
}
