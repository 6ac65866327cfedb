//go:build !unix

package tracer

import "errors"

// killProcessGroup has no portable equivalent off Unix; KillTree falls
// back to signaling each descendant individually.
func killProcessGroup(pid int) error {
	return errors.New("process-group kill unsupported on this platform")
}
