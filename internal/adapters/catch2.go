package adapters

import (
	"encoding/xml"
	"fmt"
	"strings"

	"strobe/internal/types"
)

// Catch2 drives an external C++ test binary compiled with Catch2 and
// invoked with --reporter xml. Unlike the other adapters it cannot
// build its own command: it requires the caller-supplied binary path.
type Catch2 struct{}

func (Catch2) Name() string { return "catch2" }

func (Catch2) Detect(projectRoot, command string) int {
	if command == "" {
		return 0
	}
	if !fileExists(command) {
		return 0
	}
	return 85
}

func (Catch2) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{}, types.NewError("Catch2.SuiteCommand", types.KindAdapterConfigurationError,
		fmt.Errorf("catch2 adapter requires a test binary path via the command parameter"))
}

func (Catch2) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{}, types.NewError("Catch2.SingleTestCommand", types.KindAdapterConfigurationError,
		fmt.Errorf("catch2 adapter requires a test binary path via the command parameter"))
}

// CommandForBinary builds the suite command once a binary path is
// known. The Runner does not call it: it runs a user-supplied command
// as given.
func (Catch2) CommandForBinary(binary string, level TestLevel) TestCommand {
	args := []string{"--reporter", "xml"}
	switch level {
	case LevelUnit:
		args = append(args, "[unit]")
	case LevelIntegration:
		args = append(args, "[integration]")
	case LevelE2E:
		args = append(args, "[e2e]")
	}
	return TestCommand{Program: binary, Args: args}
}

// SingleTestForBinary builds the single-test command for a binary.
func (Catch2) SingleTestForBinary(binary, testName string) TestCommand {
	return TestCommand{Program: binary, Args: []string{"--reporter", "xml", testName}}
}

type catch2TestCase struct {
	Name          string             `xml:"name,attr"`
	Filename      string             `xml:"filename,attr"`
	Line          int                `xml:"line,attr"`
	Expressions   []catch2Expression `xml:"Expression"`
	OverallResult catch2Overall      `xml:"OverallResult"`
}

type catch2Expression struct {
	Success  string `xml:"success,attr"`
	Filename string `xml:"filename,attr"`
	Line     int    `xml:"line,attr"`
	Original string `xml:"Original"`
	Expanded string `xml:"Expanded"`
}

type catch2Overall struct {
	Success           string `xml:"success,attr"`
	DurationInSeconds string `xml:"durationInSeconds,attr"`
}

type catch2Group struct {
	TestCases []catch2TestCase `xml:"TestCase"`
}

func (Catch2) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	return parseCatch2XML(stdout)
}

func parseCatch2XML(raw string) types.TestResult {
	trimmed := trimToFirstTag(raw)
	var group catch2Group
	if err := xml.Unmarshal([]byte(trimmed), &group); err != nil {
		return emptyResultWithSyntheticFailure(err)
	}

	result := types.TestResult{}
	for _, tc := range group.TestCases {
		durationMs := secondsToMillis(tc.OverallResult.DurationInSeconds)
		result.Summary.DurationMs += durationMs

		failed := tc.OverallResult.Success == "false"
		var failingExpr *catch2Expression
		for i := range tc.Expressions {
			if tc.Expressions[i].Success == "false" {
				failingExpr = &tc.Expressions[i]
				failed = true
				break
			}
		}

		if failed {
			result.Summary.Failed++
			file := tc.Filename
			line := tc.Line
			message := ""
			if failingExpr != nil {
				if failingExpr.Filename != "" {
					file = failingExpr.Filename
				}
				if failingExpr.Line != 0 {
					line = failingExpr.Line
				}
				message = strings.TrimSpace(failingExpr.Original + " == " + failingExpr.Expanded)
				if failingExpr.Expanded != "" {
					message = failingExpr.Expanded
				}
			}
			result.Failures = append(result.Failures, types.TestFailure{
				Name:            tc.Name,
				File:            file,
				Line:            line,
				Message:         message,
				RerunToken:      tc.Name,
				SuggestedTraces: suggestTracesFromFile(file),
			})
			result.AllTests = append(result.AllTests, types.TestDetail{Name: tc.Name, Status: types.TestStatusFail, DurationMs: durationMs, Message: message})
		} else {
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: tc.Name, Status: types.TestStatusPass, DurationMs: durationMs})
		}
	}
	return result
}

func (Catch2) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Catch2) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Catch2) DefaultTimeout(level TestLevel) int64 {
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

func (Catch2) UpdateProgress(line string, progress *ProgressState) {}
