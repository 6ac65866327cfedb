package adapters

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"strobe/internal/types"
)

// Cargo drives `cargo test` with the unstable line-delimited JSON
// event stream on a bootstrapped nightly toolchain.
type Cargo struct{}

func (Cargo) Name() string { return "cargo" }

func (Cargo) Detect(projectRoot, command string) int {
	if fileExists(filepath.Join(projectRoot, "Cargo.toml")) {
		return 90
	}
	return 0
}

func (Cargo) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	args := []string{"test", "--", "-Z", "unstable-options", "--format", "json", "--report-time"}
	switch level {
	case LevelUnit:
		args = append([]string{"test", "--lib"}, args[1:]...)
	case LevelIntegration:
		args = append([]string{"test", "--test", "*"}, args[1:]...)
	case LevelE2E:
		args = append([]string{"test", "--test", "e2e"}, args[1:]...)
	}
	return TestCommand{Program: "cargo", Args: args}, nil
}

func (Cargo) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{
		Program: "cargo",
		Args:    []string{"test", testName, "--", "-Z", "unstable-options", "--format", "json", "--report-time"},
	}, nil
}

// cargoEvent is one line of cargo's unstable JSON test event stream.
type cargoEvent struct {
	Type     string  `json:"type"`
	Event    string  `json:"event"`
	Name     string  `json:"name"`
	ExecTime float64 `json:"exec_time"`
	Stdout   string  `json:"stdout"`
}

func (Cargo) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	result := types.TestResult{}
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] != '{' {
			continue
		}
		var ev cargoEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type != "test" {
			continue
		}
		durationMs := int64(ev.ExecTime * 1000)
		switch ev.Event {
		case "ok":
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusPass, DurationMs: durationMs})
		case "failed":
			result.Summary.Failed++
			msg := strings.TrimSpace(ev.Stdout)
			if msg == "" {
				msg = "assertion failed"
			}
			result.Failures = append(result.Failures, types.TestFailure{
				Name:            ev.Name,
				Message:         msg,
				RerunToken:      ev.Name,
				SuggestedTraces: []string{"@usercode"},
			})
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusFail, DurationMs: durationMs, Message: msg})
		case "ignored":
			result.Summary.Skipped++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusSkip})
		}
		result.Summary.DurationMs += durationMs
	}
	if len(result.AllTests) == 0 && exitCode != 0 {
		result.Summary.Failed = 1
		result.Failures = append(result.Failures, types.TestFailure{Name: "cargo test", Message: "cargo test exited non-zero with no parseable test events"})
	}
	return result
}

func (Cargo) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Cargo) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Cargo) DefaultTimeout(level TestLevel) int64 {
	switch level {
	case LevelUnit:
		return 60_000
	case LevelIntegration:
		return 180_000
	case LevelE2E:
		return 300_000
	default:
		return 120_000
	}
}

func (Cargo) UpdateProgress(line string, progress *ProgressState) {}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
