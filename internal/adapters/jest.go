package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"strobe/internal/types"
)

// Jest drives `jest --json --no-coverage`.
type Jest struct{}

func (Jest) Name() string { return "jest" }

func (Jest) Detect(projectRoot, command string) int {
	for _, cfg := range []string{"jest.config.js", "jest.config.ts", "jest.config.cjs", "jest.config.mjs"} {
		if fileExists(filepath.Join(projectRoot, cfg)) {
			return 92
		}
	}
	data, err := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		return 0
	}
	pkg := string(data)
	if strings.Contains(pkg, `"jest"`) && !strings.Contains(pkg, `"vitest"`) {
		return 88
	}
	if strings.Contains(pkg, `"jest"`) {
		return 70
	}
	return 0
}

func (Jest) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{Program: "npx", Args: []string{"jest", "--json", "--no-coverage"}}, nil
}

func (Jest) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{Program: "npx", Args: []string{"jest", "--json", "--no-coverage", "-t", testName}}, nil
}

type jestReport struct {
	NumPassed   int         `json:"numPassedTests"`
	NumFailed   int         `json:"numFailedTests"`
	NumPending  int         `json:"numPendingTests"`
	TestResults []jestSuite `json:"testResults"`
}

type jestSuite struct {
	FilePath string          `json:"testFilePath"`
	Tests    []jestAssertion `json:"testResults"`
}

type jestAssertion struct {
	Ancestors       []string `json:"ancestorTitles"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	Duration        *float64 `json:"duration"`
	FailureMessages []string `json:"failureMessages"`
}

var jestStackRe = regexp.MustCompile(`\(([^)]+\.(?:test|spec)\.\w+):(\d+):\d+\)`)
var jestStackRe2 = regexp.MustCompile(`at\s+\S+\s+\(([^)]+\.(?:test|spec)\.\w+):(\d+):\d+\)`)

func (Jest) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	idx := strings.IndexByte(stdout, '{')
	if idx < 0 {
		idx = 0
	}
	var report jestReport
	if err := json.Unmarshal([]byte(stdout[idx:]), &report); err != nil {
		result := types.TestResult{}
		if exitCode != 0 {
			msg := stderr
			if len(msg) > 500 {
				msg = msg[:500]
			}
			result.Summary.Failed = 0
			result.Failures = []types.TestFailure{{Name: "Test run crashed", Message: "could not parse jest output.\nstderr: " + msg}}
		}
		return result
	}

	result := types.TestResult{
		Summary: types.Summary{Passed: report.NumPassed, Failed: report.NumFailed, Skipped: report.NumPending},
	}
	var totalMs int64
	for _, suite := range report.TestResults {
		for _, a := range suite.Tests {
			parts := append(append([]string{}, a.Ancestors...), a.Title)
			fullName := strings.Join(parts, " ")
			durationMs := int64(0)
			if a.Duration != nil {
				durationMs = int64(*a.Duration)
			}
			totalMs += durationMs

			status := types.TestStatusSkip
			switch a.Status {
			case "passed":
				status = types.TestStatusPass
			case "failed":
				status = types.TestStatusFail
			}
			result.AllTests = append(result.AllTests, types.TestDetail{Name: fullName, Status: status, DurationMs: durationMs})

			if status == types.TestStatusFail {
				msg := ""
				if len(a.FailureMessages) > 0 {
					msg = a.FailureMessages[0]
				}
				file, line := "", 0
				if m := jestStackRe.FindStringSubmatch(msg); m != nil {
					file = m[1]
					line = atoiOrZero(m[2])
				} else if m := jestStackRe2.FindStringSubmatch(msg); m != nil {
					file = m[1]
					line = atoiOrZero(m[2])
				} else {
					file = suite.FilePath
				}
				result.Failures = append(result.Failures, types.TestFailure{
					Name: fullName, File: file, Line: line, Message: msg,
					RerunToken:      fullName,
					SuggestedTraces: suggestTracesFromFile(file),
				})
			}
		}
	}
	result.Summary.DurationMs = totalMs
	return result
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (Jest) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Jest) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Jest) DefaultTimeout(level TestLevel) int64 {
	switch level {
	case LevelUnit:
		return 120_000
	case LevelIntegration:
		return 300_000
	case LevelE2E:
		return 600_000
	default:
		return 180_000
	}
}

func (Jest) UpdateProgress(line string, progress *ProgressState) {}
