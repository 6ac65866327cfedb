package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"strobe/internal/types"
)

// Pytest drives pytest via the pytest-json-report plugin with
// --json-report-file=-, which makes the plugin print its report to
// stdout instead of a file, appended after pytest's own terminal
// output.
type Pytest struct{}

func (Pytest) Name() string { return "pytest" }

func (Pytest) Detect(projectRoot, command string) int {
	markers := []string{"pytest.ini", "pyproject.toml", "setup.cfg", "tox.ini"}
	for _, m := range markers {
		if fileExists(filepath.Join(projectRoot, m)) {
			if m == "pyproject.toml" && !fileContains(filepath.Join(projectRoot, m), "[tool.pytest") && !hasTestsDir(projectRoot) {
				continue
			}
			return 80
		}
	}
	if hasTestsDir(projectRoot) {
		return 40
	}
	return 0
}

func hasTestsDir(root string) bool {
	for _, d := range []string{"tests", "test"} {
		if info, err := os.Stat(filepath.Join(root, d)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

func fileContains(path, needle string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), needle)
}

func (p Pytest) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	args := []string{"-m", "pytest", "--tb=short", "-q", "--json-report", "--json-report-file=-"}
	switch level {
	case LevelUnit:
		args = append(args, "-m", "not integration and not e2e")
	case LevelIntegration:
		args = append(args, "-m", "integration")
	case LevelE2E:
		args = append(args, "-m", "e2e")
	}
	return TestCommand{Program: "python3", Args: args}, nil
}

func (p Pytest) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{
		Program: "python3",
		Args:    []string{"-m", "pytest", "-k", testName, "--json-report", "--json-report-file=-", "--tb=short"},
	}, nil
}

type pytestReport struct {
	Tests []struct {
		Nodeid   string  `json:"nodeid"`
		Outcome  string  `json:"outcome"`
		Duration float64 `json:"duration"`
		Lineno   *int    `json:"lineno"`
		Call     *struct {
			Longrepr string `json:"longrepr"`
		} `json:"call"`
	} `json:"tests"`
}

func (Pytest) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	var doc pytestReport
	if err := json.Unmarshal(extractJSONReport(stdout), &doc); err != nil {
		return parsePytestFromStdout(stdout, exitCode)
	}

	result := types.TestResult{}
	for _, t := range doc.Tests {
		durationMs := int64(t.Duration * 1000)
		result.Summary.DurationMs += durationMs
		switch t.Outcome {
		case "passed":
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: t.Nodeid, Status: types.TestStatusPass, DurationMs: durationMs})
		case "skipped":
			result.Summary.Skipped++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: t.Nodeid, Status: types.TestStatusSkip, DurationMs: durationMs})
		default:
			result.Summary.Failed++
			msg := ""
			if t.Call != nil {
				msg = t.Call.Longrepr
			}
			file := extractPytestLocation(t.Nodeid)
			line := 0
			if t.Lineno != nil {
				line = *t.Lineno
			}
			result.Failures = append(result.Failures, types.TestFailure{
				Name: t.Nodeid, File: file, Line: line, Message: msg,
				RerunToken:      t.Nodeid,
				SuggestedTraces: suggestTracesFromFile(file),
			})
			result.AllTests = append(result.AllTests, types.TestDetail{Name: t.Nodeid, Status: types.TestStatusFail, DurationMs: durationMs, Message: msg})
		}
	}
	return result
}

// extractJSONReport pulls the pytest-json-report document out of
// stdout. With --json-report-file=-, the plugin appends the report
// after pytest's own terminal output rather than isolating it, so the
// whole trimmed buffer is tried as JSON first and, failing that, the
// substring between the first '{' and the last '}' is tried instead.
func extractJSONReport(stdout string) []byte {
	trimmed := strings.TrimSpace(stdout)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return nil
	}
	return []byte(trimmed[start : end+1])
}

func extractPytestLocation(nodeid string) string {
	return strings.SplitN(nodeid, "::", 2)[0]
}

// parsePytestFromStdout is the fallback when no JSON report is
// available: it reports one synthetic failure when pytest exited
// non-zero and an empty result otherwise. No counts are scraped from
// pytest's terminal output.
func parsePytestFromStdout(stdout string, exitCode int) types.TestResult {
	result := types.TestResult{}
	if exitCode != 0 {
		result.Summary.Failed = 1
		result.Failures = []types.TestFailure{{Name: "pytest", Message: "pytest exited non-zero with no JSON report available"}}
	}
	return result
}

func (Pytest) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Pytest) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Pytest) DefaultTimeout(level TestLevel) int64 {
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

func (Pytest) UpdateProgress(line string, progress *ProgressState) {}
