package tracer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"strobe/internal/types"
)

// Fake is a minimal, real (not mocked-intent) implementation of
// Client: it spawns genuine child processes and answers
// liveness/kill-tree queries against the real process table. It
// exists because the dynamic-instrumentation runtime itself is out of
// scope, but the rest of the core still needs something to run
// against in tests and local development.
type Fake struct {
	mu      sync.Mutex
	cmds    map[int]*exec.Cmd
	suspend map[int]bool
	hooks   map[string]map[string]struct{} // sessionID -> pattern set
}

// NewFake constructs an empty Fake tracer.
func NewFake() *Fake {
	return &Fake{
		cmds:    map[int]*exec.Cmd{},
		suspend: map[int]bool{},
		hooks:   map[string]map[string]struct{}{},
	}
}

func (f *Fake) Spawn(ctx context.Context, command string, args, env []string, cwd string, deferResume bool) (int, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = cwd
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &bytes.Buffer{}
	// Each traced child becomes its own process group leader, so
	// KillTree can kill the whole group (child plus anything it forked)
	// with one signal instead of walking /proc for descendants.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if deferResume {
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		if p := cmd.Process; p != nil {
			_ = p.Signal(syscall.SIGSTOP)
		}
		pid := cmd.Process.Pid
		f.mu.Lock()
		f.cmds[pid] = cmd
		f.suspend[pid] = true
		f.mu.Unlock()
		return pid, nil
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	f.mu.Lock()
	f.cmds[pid] = cmd
	f.mu.Unlock()
	return pid, nil
}

func (f *Fake) Resume(ctx context.Context, pid int) error {
	f.mu.Lock()
	suspended := f.suspend[pid]
	delete(f.suspend, pid)
	f.mu.Unlock()
	if !suspended {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGCONT)
}

func (f *Fake) Attach(ctx context.Context, pid int) error {
	if !f.IsAlive(pid) {
		return fmt.Errorf("no such process: %d", pid)
	}
	return nil
}

func (f *Fake) InstallHooks(ctx context.Context, sessionID string, patterns []string) (HookResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.hooks[sessionID]
	if !ok {
		set = map[string]struct{}{}
		f.hooks[sessionID] = set
	}
	for _, p := range patterns {
		set[p] = struct{}{}
	}
	return HookResult{Installed: len(patterns), Matched: len(patterns)}, nil
}

func (f *Fake) RemoveHooks(ctx context.Context, sessionID string, patterns []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.hooks[sessionID]
	if !ok {
		return nil
	}
	for _, p := range patterns {
		delete(set, p)
	}
	return nil
}

func (f *Fake) SetBreakpoint(ctx context.Context, sessionID, location, condition string, hitCount int) (string, error) {
	return "addr:" + location, nil
}

func (f *Fake) RemoveBreakpoint(ctx context.Context, sessionID, id string) error { return nil }

func (f *Fake) SetLogPoint(ctx context.Context, sessionID, location, message, condition string) (string, error) {
	return "addr:" + location, nil
}

func (f *Fake) RemoveLogPoint(ctx context.Context, sessionID, id string) error { return nil }

func (f *Fake) ContinueThread(ctx context.Context, sessionID, threadID string, action types.ContinueAction) error {
	return nil
}

// IsAlive returns true when the pid exists, even if the caller lacks
// permission to signal it (EPERM), and false only on ESRCH.
func (f *Fake) IsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

func (f *Fake) CaptureNativeStacks(ctx context.Context, pid int) ([]types.ThreadStack, error) {
	return captureNativeStacks(ctx, pid)
}

// KillTree signals pid's whole process group at once via
// killProcessGroup (golang.org/x/sys/unix.Kill with a negative pid) on
// platforms that support it. Where that is unavailable, it falls back
// to /proc-based descendant enumeration and signals each process
// individually. Either way, reaping pid itself is left to a concurrent
// Wait call already in flight so its captured stdout/stderr still
// gets flushed; KillTree only reaps the descendants it signals
// directly, which nothing else is waiting on.
func (f *Fake) KillTree(ctx context.Context, pid int) error {
	if err := killProcessGroup(pid); err == nil {
		return nil
	}
	pids := descendants(pid)
	for i := len(pids) - 1; i >= 0; i-- {
		proc, err := os.FindProcess(pids[i])
		if err != nil {
			continue
		}
		_ = proc.Signal(syscall.SIGKILL)
		if pids[i] != pid {
			_, _ = proc.Wait()
		}
	}
	return nil
}

// Wait blocks until pid's owning *exec.Cmd exits, then returns its
// captured stdout/stderr and exit code. It returns immediately with an
// error if pid is unknown (already reaped by KillTree, for instance).
func (f *Fake) Wait(ctx context.Context, pid int) (int, string, string, error) {
	f.mu.Lock()
	cmd, ok := f.cmds[pid]
	f.mu.Unlock()
	if !ok {
		return -1, "", "", fmt.Errorf("unknown pid %d", pid)
	}

	err := cmd.Wait()
	f.mu.Lock()
	delete(f.cmds, pid)
	f.mu.Unlock()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	stdout, _ := cmd.Stdout.(*bytes.Buffer)
	stderr, _ := cmd.Stderr.(*bytes.Buffer)
	out, errOut := "", ""
	if stdout != nil {
		out = stdout.String()
	}
	if stderr != nil {
		errOut = stderr.String()
	}
	return exitCode, out, errOut, nil
}

func (f *Fake) ExecuteDebugRead(ctx context.Context, sessionID string, expressions []string) ([]ReadResult, error) {
	out := make([]ReadResult, len(expressions))
	for i := range expressions {
		out[i] = ReadResult{Error: "debug read not supported by the fake tracer"}
	}
	return out, nil
}
