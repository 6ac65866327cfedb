//go:build linux

package tracer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"strobe/internal/types"
)

// clockTicksPerSecond matches sysconf(_SC_CLK_TCK) on every Linux
// platform Go supports; utime/stime in /proc/<pid>/stat are expressed
// in these ticks.
const clockTicksPerSecond = 100

// CPUTime sums the user+kernel CPU time consumed by pid and its
// current descendant tree, read from /proc/<pid>/stat fields 14
// (utime) and 15 (stime).
func CPUTime(pid int) (time.Duration, error) {
	var total time.Duration
	for _, p := range descendants(pid) {
		d, ok := readProcCPUTime(p)
		if ok {
			total += d
		}
	}
	return total, nil
}

func readProcCPUTime(pid int) (time.Duration, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	text := string(data)
	closeParen := strings.LastIndexByte(text, ')')
	if closeParen < 0 || closeParen+2 >= len(text) {
		return 0, false
	}
	fields := strings.Fields(text[closeParen+2:])
	// fields[0] is state (field 3); utime is field 14, stime field 15,
	// i.e. index 11 and 12 relative to fields[0]=state.
	if len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseInt(fields[11], 10, 64)
	stime, err2 := strconv.ParseInt(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	ticks := utime + stime
	return time.Duration(ticks) * time.Second / clockTicksPerSecond, true
}

// descendants returns pid followed by every transitive child,
// discovered by scanning /proc/*/stat for parent pids — the Linux
// equivalent of `pgrep -P` walked depth-first from the root.
func descendants(pid int) []int {
	childrenOf := map[int][]int{}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return []int{pid}
	}
	for _, entry := range entries {
		candidate, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		ppid, ok := readPPID(candidate)
		if !ok {
			continue
		}
		childrenOf[ppid] = append(childrenOf[ppid], candidate)
	}

	var out []int
	var walk func(int)
	walk = func(p int) {
		out = append(out, p)
		for _, c := range childrenOf[p] {
			walk(c)
		}
	}
	walk(pid)
	return out
}

func readPPID(pid int) (int, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	// Format: pid (comm) state ppid ...; comm may contain spaces/parens,
	// so locate the last ')' before splitting the remaining fields.
	text := string(data)
	closeParen := strings.LastIndexByte(text, ')')
	if closeParen < 0 || closeParen+2 >= len(text) {
		return 0, false
	}
	fields := strings.Fields(text[closeParen+2:])
	if len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}

// captureNativeStacks enumerates /proc/<pid>/task/*/stack, yielding one
// ThreadStack per kernel thread, per the Linux-family branch of native
// stack capture.
func captureNativeStacks(_ context.Context, pid int) ([]types.ThreadStack, error) {
	taskDir := filepath.Join("/proc", strconv.Itoa(pid), "task")
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, err
	}
	var stacks []types.ThreadStack
	for _, entry := range entries {
		tid := entry.Name()
		data, err := os.ReadFile(filepath.Join(taskDir, tid, "stack"))
		if err != nil {
			continue
		}
		var frames []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				frames = append(frames, line)
			}
		}
		stacks = append(stacks, types.ThreadStack{Name: "thread-" + tid, Frames: frames})
	}
	return stacks, nil
}
