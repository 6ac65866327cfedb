package adapters

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"strobe/internal/types"
)

// Vitest drives `vitest run --reporter=json`, falling back to a
// custom stderr line-prefix stream (STROBE_TEST <json>) injected by a
// small reporter when the JSON report never flushes because of a hung
// teardown.
type Vitest struct{}

const vitestStreamPrefix = "STROBE_TEST "

func (Vitest) Name() string { return "vitest" }

func (Vitest) Detect(projectRoot, command string) int {
	if hasPackageJSONDependency(projectRoot, "vitest") || fileExists(filepath.Join(projectRoot, "vitest.config.ts")) || fileExists(filepath.Join(projectRoot, "vitest.config.js")) {
		return 85
	}
	return 0
}

func hasPackageJSONDependency(root, dep string) bool {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return false
	}
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, a := doc.Dependencies[dep]
	_, b := doc.DevDependencies[dep]
	return a || b
}

func (Vitest) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	args := []string{"vitest", "run", "--reporter=json"}
	switch level {
	case LevelUnit:
		args = append(args, "--project=unit")
	case LevelIntegration:
		args = append(args, "--project=integration")
	case LevelE2E:
		args = append(args, "--project=e2e")
	}
	return TestCommand{Program: "npx", Args: args}, nil
}

func (Vitest) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{Program: "npx", Args: []string{"vitest", "run", "--reporter=json", "-t", testName}}, nil
}

type vitestReport struct {
	TestResults []struct {
		AssertionResults []struct {
			FullName        string   `json:"fullName"`
			Status          string   `json:"status"`
			Duration        float64  `json:"duration"`
			FailureMessages []string `json:"failureMessages"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

func (v Vitest) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	var doc vitestReport
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &doc); err == nil {
		return v.fromReport(doc)
	}
	if streamed, ok := v.fromStream(stderr); ok {
		return streamed
	}
	result := types.TestResult{}
	if exitCode != 0 {
		result.Summary.Failed = 1
		result.Failures = []types.TestFailure{{Name: "vitest", Message: "vitest exited non-zero; no JSON report and no STROBE_TEST stream available"}}
	}
	return result
}

func (Vitest) fromReport(doc vitestReport) types.TestResult {
	result := types.TestResult{}
	for _, file := range doc.TestResults {
		for _, a := range file.AssertionResults {
			durationMs := int64(a.Duration)
			result.Summary.DurationMs += durationMs
			switch a.Status {
			case "passed":
				result.Summary.Passed++
				result.AllTests = append(result.AllTests, types.TestDetail{Name: a.FullName, Status: types.TestStatusPass, DurationMs: durationMs})
			case "skipped", "pending", "todo":
				result.Summary.Skipped++
				result.AllTests = append(result.AllTests, types.TestDetail{Name: a.FullName, Status: types.TestStatusSkip, DurationMs: durationMs})
			default:
				result.Summary.Failed++
				msg := ""
				if len(a.FailureMessages) > 0 {
					msg = a.FailureMessages[0]
				}
				result.Failures = append(result.Failures, types.TestFailure{
					Name: a.FullName, Message: msg, RerunToken: a.FullName, SuggestedTraces: []string{"@usercode"},
				})
				result.AllTests = append(result.AllTests, types.TestDetail{Name: a.FullName, Status: types.TestStatusFail, DurationMs: durationMs, Message: msg})
			}
		}
	}
	return result
}

// vitestStreamEvent is one line of the STROBE_TEST-prefixed reporter
// stream: {"name","status","durationMs","message"}.
type vitestStreamEvent struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Message    string `json:"message"`
}

func (Vitest) fromStream(stderr string) (types.TestResult, bool) {
	found := false
	result := types.TestResult{}
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, vitestStreamPrefix) {
			continue
		}
		var ev vitestStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, vitestStreamPrefix)), &ev); err != nil {
			continue
		}
		found = true
		result.Summary.DurationMs += ev.DurationMs
		switch ev.Status {
		case "passed":
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusPass, DurationMs: ev.DurationMs})
		case "skipped":
			result.Summary.Skipped++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusSkip, DurationMs: ev.DurationMs})
		default:
			result.Summary.Failed++
			result.Failures = append(result.Failures, types.TestFailure{Name: ev.Name, Message: ev.Message, RerunToken: ev.Name, SuggestedTraces: []string{"@usercode"}})
			result.AllTests = append(result.AllTests, types.TestDetail{Name: ev.Name, Status: types.TestStatusFail, DurationMs: ev.DurationMs, Message: ev.Message})
		}
	}
	return result, found
}

func (Vitest) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Vitest) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Vitest) DefaultTimeout(level TestLevel) int64 {
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

func (Vitest) UpdateProgress(line string, progress *ProgressState) {
	if strings.HasPrefix(line, vitestStreamPrefix) {
		progress.Seen = append(progress.Seen, strings.TrimPrefix(line, vitestStreamPrefix))
	}
}
