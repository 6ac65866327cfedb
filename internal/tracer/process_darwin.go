//go:build darwin

package tracer

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"strobe/internal/types"
)

// CPUTime sums user+kernel CPU time for pid and its current
// descendant tree via gopsutil's per-process Times accessor.
func CPUTime(pid int) (time.Duration, error) {
	var total time.Duration
	for _, p := range descendants(pid) {
		proc, err := process.NewProcess(int32(p))
		if err != nil {
			continue
		}
		times, err := proc.Times()
		if err != nil {
			continue
		}
		total += time.Duration((times.User + times.System) * float64(time.Second))
	}
	return total, nil
}

// descendants walks the process tree via gopsutil, since Darwin has no
// /proc filesystem to scan directly.
func descendants(pid int) []int {
	out := []int{pid}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return out
	}
	var walk func(*process.Process)
	walk = func(p *process.Process) {
		children, err := p.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			out = append(out, int(c.Pid))
			walk(c)
		}
	}
	walk(proc)
	return out
}

// captureNativeStacks shells out to the OS "sample" utility for 1
// second and parses Thread_* sections, per the Darwin-family branch of
// native stack capture. Frame lines are identified by a "+" offset.
func captureNativeStacks(ctx context.Context, pid int) ([]types.ThreadStack, error) {
	cmd := exec.CommandContext(ctx, "sample", strconv.Itoa(pid), "1")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return parseSampleOutput(out.String()), nil
}

func parseSampleOutput(text string) []types.ThreadStack {
	var stacks []types.ThreadStack
	var current *types.ThreadStack
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Thread_") {
			if current != nil {
				stacks = append(stacks, *current)
			}
			name := strings.TrimSuffix(trimmed, ":")
			current = &types.ThreadStack{Name: name}
			continue
		}
		if current != nil && strings.Contains(trimmed, "+") {
			current.Frames = append(current.Frames, trimmed)
		}
	}
	if current != nil {
		stacks = append(stacks, *current)
	}
	return stacks
}
