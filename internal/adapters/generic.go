package adapters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"strobe/internal/types"
)

// Generic is the catch-all adapter for frameworks with no dedicated
// driver. It always detects (confidence 1) so the registry's closed
// set never comes up empty, and falls back to regex scraping of
// FAIL/ERROR lines since it has no structured output format to trust.
type Generic struct{}

func (Generic) Name() string { return "generic" }

func (Generic) Detect(projectRoot, command string) int { return 1 }

func (Generic) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{}, types.NewError("Generic.SuiteCommand", types.KindAdapterConfigurationError,
		fmt.Errorf("generic adapter requires a test command via the command parameter"))
}

func (Generic) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{}, types.NewError("Generic.SingleTestCommand", types.KindAdapterConfigurationError,
		fmt.Errorf("generic adapter does not support single test reruns"))
}

var genericFailRe = regexp.MustCompile(`(?i)(?:FAIL|FAILED|ERROR|FAILURE)[:\s]+(.+?)(?:\s+at\s+)?(\S+?):(\d+)`)

func (Generic) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	combined := stdout + "\n" + stderr
	var failures []types.TestFailure
	for _, m := range genericFailRe.FindAllStringSubmatch(combined, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			name = "unknown"
		}
		line, _ := strconv.Atoi(m[3])
		failures = append(failures, types.TestFailure{
			Name:    name,
			File:    m[2],
			Line:    line,
			Message: m[0],
		})
	}
	if len(failures) == 0 && exitCode != 0 {
		failures = append(failures, types.TestFailure{
			Name:    "unknown",
			Message: fmt.Sprintf("process exited with code %d", exitCode),
		})
	}
	result := types.TestResult{Summary: types.Summary{Failed: len(failures)}, Failures: failures}
	return result
}

func (Generic) SuggestTraces(failure types.TestFailure) []string { return nil }

func (Generic) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Generic) DefaultTimeout(level TestLevel) int64 { return 120_000 }

func (Generic) UpdateProgress(line string, progress *ProgressState) {}
