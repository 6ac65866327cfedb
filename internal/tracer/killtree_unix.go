//go:build unix

package tracer

import "golang.org/x/sys/unix"

// killProcessGroup sends SIGKILL to every process in pid's process
// group with a single syscall, rather than walking /proc to find and
// signal each descendant individually. Spawn puts every traced child
// in its own group (Setpgid), so signaling group -pid can never reach
// the daemon's own process group.
func killProcessGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == nil || err == unix.ESRCH {
		return nil
	}
	return err
}
