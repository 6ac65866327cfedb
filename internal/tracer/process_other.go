//go:build !linux && !darwin

package tracer

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"strobe/internal/types"
)

// CPUTime sums user+kernel CPU time for pid and its descendant tree
// via gopsutil.
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

// descendants falls back to gopsutil's child enumeration on platforms
// with neither /proc nor the Darwin "sample" utility.
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

// captureNativeStacks returns an empty result on unsupported
// platforms, per the "Other: empty result" branch of native stack
// capture.
func captureNativeStacks(_ context.Context, _ int) ([]types.ThreadStack, error) {
	return nil, nil
}
